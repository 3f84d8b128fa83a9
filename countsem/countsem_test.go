package countsem

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flightsw/osal"
)

func TestCreateRejectsOutOfRangeInitialValue(t *testing.T) {
	_, err := Create("range-probe", osal.ObjectIdUndefined, 5, 3)
	require.Error(t, err)
	require.ErrorIs(t, err, osal.InvalidSemValue)
}

func TestGiveThenTakeRoundTrips(t *testing.T) {
	id, err := Create("give-take-probe", osal.ObjectIdUndefined, 0, 2)
	require.NoError(t, err)
	defer Delete(id)

	require.NoError(t, Give(id))
	require.NoError(t, Take(context.Background(), id, osal.Check))
}

func TestTakeCheckFailsWhenExhausted(t *testing.T) {
	id, err := Create("exhausted-probe", osal.ObjectIdUndefined, 0, 1)
	require.NoError(t, err)
	defer Delete(id)

	err = Take(context.Background(), id, osal.Check)
	require.Error(t, err)
	require.ErrorIs(t, err, osal.SemTimeout)
}

func TestTakeTimesOutWhenStarved(t *testing.T) {
	id, err := Create("timeout-probe", osal.ObjectIdUndefined, 0, 1)
	require.NoError(t, err)
	defer Delete(id)

	start := time.Now()
	err = Take(context.Background(), id, osal.Timeout(30))
	require.Error(t, err)
	require.ErrorIs(t, err, osal.SemTimeout)
	require.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestDeleteWakesBlockedTake(t *testing.T) {
	id, err := Create("delete-wake-probe", osal.ObjectIdUndefined, 0, 1)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var takeErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		takeErr = Take(context.Background(), id, osal.Pend)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, Delete(id))
	wg.Wait()

	require.Error(t, takeErr)
	require.ErrorIs(t, takeErr, osal.ErrInvalidId)
}
