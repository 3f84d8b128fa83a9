package console

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flightsw/osal"
)

func TestSyncWriteGoesDirectlyToSink(t *testing.T) {
	var buf bytes.Buffer
	id, err := Create("sync-probe", osal.ObjectIdUndefined, false, &buf)
	require.NoError(t, err)
	defer Delete(id)

	require.NoError(t, Write(id, "hello\n"))
	require.Equal(t, "hello\n", buf.String())
}

func TestAsyncWriteIsDrainedEventually(t *testing.T) {
	var buf bytes.Buffer
	id, err := Create("async-probe", osal.ObjectIdUndefined, true, &buf)
	require.NoError(t, err)
	defer Delete(id)

	require.NoError(t, Write(id, "one\n"))
	require.NoError(t, Write(id, "two\n"))

	require.Eventually(t, func() bool {
		return buf.String() == "one\ntwo\n"
	}, time.Second, 5*time.Millisecond)
}

func TestAsyncRingOverflowDropsOldest(t *testing.T) {
	buf := &blockingSink{gate: make(chan struct{})}
	id, err := Create("overflow-probe", osal.ObjectIdUndefined, true, buf)
	require.NoError(t, err)
	defer func() {
		buf.release()
		Delete(id)
	}()

	for i := 0; i < RingCapacity+10; i++ {
		require.NoError(t, Write(id, "x"))
	}

	info, err := GetInfo(id)
	require.NoError(t, err)
	require.Greater(t, info.Dropped, uint64(0))
}

func TestDeleteWaitsForDrainToFinish(t *testing.T) {
	var buf bytes.Buffer
	id, err := Create("delete-drain-probe", osal.ObjectIdUndefined, true, &buf)
	require.NoError(t, err)

	require.NoError(t, Write(id, "flushed\n"))
	require.NoError(t, Delete(id))
	require.Equal(t, "flushed\n", buf.String())
}

// blockingSink never drains on its own; Write calls accumulate in the
// console's ring until release() lets the first write through, giving
// the overflow test a way to force the ring past capacity.
type blockingSink struct {
	gate chan struct{}
}

func (b *blockingSink) Write(p []byte) (int, error) {
	<-b.gate
	return len(p), nil
}

func (b *blockingSink) release() { close(b.gate) }
