package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flightsw/osal"
)

func TestCreateRunsEntryAndWait(t *testing.T) {
	var ran int32
	id, err := Create("worker", osal.ObjectIdUndefined, 0, func(self osal.ObjectId, arg any) {
		require.Equal(t, "payload", arg)
		atomic.StoreInt32(&ran, 1)
	}, "payload")
	require.NoError(t, err)

	require.NoError(t, Wait(id))
	require.Equal(t, int32(1), atomic.LoadInt32(&ran))

	info, err := GetInfo(id)
	require.NoError(t, err)
	require.True(t, info.Exited)
}

func TestExitEndsEntryEarly(t *testing.T) {
	var reachedEnd int32
	id, err := Create("early-exit", osal.ObjectIdUndefined, 0, func(self osal.ObjectId, arg any) {
		Exit()
		atomic.StoreInt32(&reachedEnd, 1)
	}, nil)
	require.NoError(t, err)

	require.NoError(t, Wait(id))
	require.Equal(t, int32(0), atomic.LoadInt32(&reachedEnd))
}

func TestSetPriorityUpdatesInfo(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	id, err := Create("priority-probe", osal.ObjectIdUndefined, 5, func(self osal.ObjectId, arg any) {
		close(started)
		<-release
	}, nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, SetPriority(id, 9))

	info, err := GetInfo(id)
	require.NoError(t, err)
	require.Equal(t, 9, info.Priority)

	close(release)
	require.NoError(t, Wait(id))
}

func TestMatchPredicate(t *testing.T) {
	id, err := Create("match-probe", osal.ObjectIdUndefined, 3, func(self osal.ObjectId, arg any) {}, nil)
	require.NoError(t, err)
	require.NoError(t, Wait(id))

	require.True(t, Match(id, func(info Info) bool { return info.Priority == 3 }))
	require.False(t, Match(id, func(info Info) bool { return info.Priority == 4 }))
}

func TestDelaySleepsApproximately(t *testing.T) {
	start := time.Now()
	Delay(20)
	require.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestDetachPreventsWait(t *testing.T) {
	release := make(chan struct{})
	id, err := Create("detach-probe", osal.ObjectIdUndefined, 0, func(self osal.ObjectId, arg any) {
		<-release
	}, nil)
	require.NoError(t, err)

	require.NoError(t, Detach(id))

	info, err := GetInfo(id)
	require.NoError(t, err)
	require.True(t, info.Detached)

	err = Wait(id)
	require.Error(t, err)
	require.ErrorIs(t, err, osal.ErrInvalidId)

	close(release)
}

func TestRegisterAndCurrentIdRoundTrip(t *testing.T) {
	ctx := Register(context.Background(), osal.ObjectId(0x00100042))

	got, ok := CurrentId(ctx)
	require.True(t, ok)
	require.Equal(t, osal.ObjectId(0x00100042), got)

	_, ok = CurrentId(context.Background())
	require.False(t, ok)
}

func TestGetIdByName(t *testing.T) {
	id, err := Create("named-task", osal.ObjectIdUndefined, 0, func(self osal.ObjectId, arg any) {}, nil)
	require.NoError(t, err)
	require.NoError(t, Wait(id))

	got, err := GetId("named-task")
	require.NoError(t, err)
	require.Equal(t, id, got)
}
