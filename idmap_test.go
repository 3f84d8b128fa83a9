package osal

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/stretchr/testify/require"
)

func TestAllocateFinalizeRoundTrip(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)

	tok, payload, err := tbl.AllocateNew("widget", ObjectIdUndefined)
	require.NoError(t, err)
	*payload = 42

	id, err := tbl.FinalizeNew(tok, true)
	require.NoError(t, err)
	require.True(t, ObjectIdDefined(id))

	got, err := tbl.FindByName("widget")
	require.NoError(t, err)
	require.Equal(t, id, got)

	rtok, rpayload, err := tbl.GetByID(LockRef, id)
	require.NoError(t, err)
	require.Equal(t, 42, *rpayload)
	tbl.Release(rtok)
}

func TestAllocateNewRejectsDuplicateName(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)

	tok1, _, err := tbl.AllocateNew("dup", ObjectIdUndefined)
	require.NoError(t, err)
	_, err = tbl.FinalizeNew(tok1, true)
	require.NoError(t, err)

	_, _, err = tbl.AllocateNew("dup", ObjectIdUndefined)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNameTaken)
}

func TestAllocateNewRejectsOverlongName(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)
	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, _, err := tbl.AllocateNew(string(long), ObjectIdUndefined)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNameTooLong)
}

// TestTableCapacityExhaustion is the boundary scenario: a table hands
// out exactly TableCapacity ids before refusing a further allocation.
func TestTableCapacityExhaustion(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)

	for i := 0; i < TableCapacity; i++ {
		tok, _, err := tbl.AllocateNew("", ObjectIdUndefined)
		require.NoErrorf(t, err, "allocation %d of %d", i, TableCapacity)
		_, err = tbl.FinalizeNew(tok, true)
		require.NoError(t, err)
	}

	_, _, err := tbl.AllocateNew("", ObjectIdUndefined)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNoFreeIds)
}

// TestIdDecomposeRoundTrip is scenario 5: an id's type tag and array
// index must round-trip through ObjectIdToArrayIndex/IdentifyObject
// regardless of how many generations a slot has cycled through.
func TestIdDecomposeRoundTrip(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)

	var last ObjectId
	for i := 0; i < 3; i++ {
		tok, _, err := tbl.AllocateNew("cyclic", ObjectIdUndefined)
		require.NoError(t, err)
		id, err := tbl.FinalizeNew(tok, true)
		require.NoError(t, err)

		require.Equal(t, ObjectTypeUser, IdentifyObject(id))
		idx, err := ObjectIdToArrayIndex(ObjectTypeUser, id)
		require.NoError(t, err)
		require.Equal(t, 0, idx) // first-fit scan reuses freed slot 0 every time

		dtok, _, err := tbl.GetByID(LockExclusive, id)
		require.NoError(t, err)
		require.NoError(t, tbl.FinalizeDelete(dtok, true))

		require.NotEqual(t, last, id, "generation must change id across reuse")
		last = id
	}
}

// TestResourceStatsAccounting is scenario 6: GetResourceStats reports
// exactly how many slots are in use per type.
func TestResourceStatsAccounting(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)

	before := GetResourceStats()[ObjectTypeUser]

	tok, _, err := tbl.AllocateNew("stat-probe", ObjectIdUndefined)
	require.NoError(t, err)
	id, err := tbl.FinalizeNew(tok, true)
	require.NoError(t, err)

	mid := GetResourceStats()[ObjectTypeUser]
	require.Equal(t, before.Used+1, mid.Used)
	require.Equal(t, TableCapacity, mid.Total)

	dtok, _, err := tbl.GetByID(LockExclusive, id)
	require.NoError(t, err)
	require.NoError(t, tbl.FinalizeDelete(dtok, true))

	after := GetResourceStats()[ObjectTypeUser]
	require.Equal(t, before.Used, after.Used)
}

func TestForEachObjectCreatorFilter(t *testing.T) {
	tbl := NewTable[int](ObjectTypeUser)
	creatorA := ObjectId(0x00100001)
	creatorB := ObjectId(0x00100002)

	tokA, _, err := tbl.AllocateNew("owned-by-a", creatorA)
	require.NoError(t, err)
	idA, err := tbl.FinalizeNew(tokA, true)
	require.NoError(t, err)

	tokB, _, err := tbl.AllocateNew("owned-by-b", creatorB)
	require.NoError(t, err)
	idB, err := tbl.FinalizeNew(tokB, true)
	require.NoError(t, err)

	var seen []ObjectId
	ForEachObjectOfType(ObjectTypeUser, creatorA, func(id ObjectId) {
		seen = append(seen, id)
	})

	require.Contains(t, seen, idA)
	require.NotContains(t, seen, idB)

	if diff := pretty.Compare([]ObjectId{idA}, seen); diff != "" {
		t.Fatalf("creator-filtered iteration diff (-want +got):\n%s", diff)
	}
}

func TestErrorIsMatchesResultSentinel(t *testing.T) {
	err := NewError(ErrNameTaken, "probe")
	require.ErrorIs(t, err, ErrNameTaken)
	require.False(t, err.Is(ErrNameNotFound))
}
