package rwlock

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flightsw/osal"
	"github.com/flightsw/osal/host"
)

func TestCreateFailsWhenHostHasNoNativeRwLock(t *testing.T) {
	prev := capabilities
	Configure(host.Capabilities{NativeRwLock: false})
	defer Configure(prev)

	_, err := Create("unsupported-probe", osal.ObjectIdUndefined)
	require.Error(t, err)
	require.ErrorIs(t, err, osal.ErrNotImplemented)
}

func TestReadersDoNotExcludeEachOther(t *testing.T) {
	Configure(host.Capabilities{NativeRwLock: true})

	id, err := Create("reader-probe", osal.ObjectIdUndefined)
	require.NoError(t, err)
	defer Delete(id)

	require.NoError(t, ReadTake(id))
	require.NoError(t, ReadTake(id))
	require.NoError(t, ReadGive(id))
	require.NoError(t, ReadGive(id))
}

func TestWriteTakeThenGiveRoundTrips(t *testing.T) {
	Configure(host.Capabilities{NativeRwLock: true})

	id, err := Create("writer-probe", osal.ObjectIdUndefined)
	require.NoError(t, err)
	defer Delete(id)

	require.NoError(t, WriteTake(id))
	require.NoError(t, WriteGive(id))
}
