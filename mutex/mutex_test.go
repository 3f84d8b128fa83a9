package mutex

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flightsw/osal"
)

func TestRecursiveTakeByOwner(t *testing.T) {
	id, err := Create("recursive-probe", osal.ObjectIdUndefined)
	require.NoError(t, err)
	defer Delete(id)

	taskId := osal.ObjectId(0x00500001)
	require.NoError(t, Take(id, taskId))
	require.NoError(t, Take(id, taskId)) // re-entrant

	info, err := GetInfo(id)
	require.NoError(t, err)
	require.Equal(t, 2, info.Depth)
	require.Equal(t, taskId, info.Owner)

	require.NoError(t, Give(id, taskId))
	info, err = GetInfo(id)
	require.NoError(t, err)
	require.Equal(t, 1, info.Depth)

	require.NoError(t, Give(id, taskId))
	info, err = GetInfo(id)
	require.NoError(t, err)
	require.Equal(t, osal.ObjectIdUndefined, info.Owner)
}

func TestGiveByNonOwnerFails(t *testing.T) {
	id, err := Create("non-owner-probe", osal.ObjectIdUndefined)
	require.NoError(t, err)
	defer Delete(id)

	owner := osal.ObjectId(0x00500002)
	other := osal.ObjectId(0x00500003)
	require.NoError(t, Take(id, owner))

	err = Give(id, other)
	require.Error(t, err)

	require.NoError(t, Give(id, owner))
}

func TestSecondTaskBlocksUntilOwnerGives(t *testing.T) {
	id, err := Create("contended-probe", osal.ObjectIdUndefined)
	require.NoError(t, err)
	defer Delete(id)

	owner := osal.ObjectId(0x00500004)
	waiter := osal.ObjectId(0x00500005)
	require.NoError(t, Take(id, owner))

	var wg sync.WaitGroup
	acquired := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, Take(id, waiter))
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired the mutex while the owner still held it")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, Give(id, owner))

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the mutex after owner gave it up")
	}
	wg.Wait()

	require.NoError(t, Give(id, waiter))
}
