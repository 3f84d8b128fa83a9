package osal

import (
	"sync"
	"time"
)

// CommonRecord is the per-slot bookkeeping every primitive table
// carries, independent of the primitive-specific payload. See
// spec.md §3.
type CommonRecord struct {
	Name      string
	ActiveId  ObjectId
	CreatorId ObjectId
	Refcount  int
}

type slot[T any] struct {
	record     CommonRecord
	generation uint16
	payload    T
}

// Table is a process-wide, fixed-capacity, per-type resource table:
// the generalized form of spec.md §4.1's "Resource-identity layer",
// one instance per ObjectType. It owns a single lock (Table.mu) guarding
// every slot of that type — per spec.md §4.2, at most one Table's lock
// is ever held at a time by this core.
//
// Grounded on fuse/handle.go's portableHandleMap: a slice of slots plus
// a free list, protected by one mutex, handing out opaque integers that
// decode back to a slot index in O(1).
type Table[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	objType  ObjectType
	slots    []slot[T]
	names    map[string]int
	used     int
	capacity int
}

// NewTable allocates a fresh table for objType with TableCapacity
// slots, and registers it with the process-wide stats/iteration
// registry (see stats.go, foreach.go).
func NewTable[T any](objType ObjectType) *Table[T] {
	t := &Table[T]{
		objType:  objType,
		slots:    make([]slot[T], TableCapacity),
		names:    make(map[string]int),
		capacity: TableCapacity,
	}
	t.cond = sync.NewCond(&t.mu)
	registerTable(objType, t)
	return t
}

// Used returns the number of active slots. Part of the statsTable
// interface (stats.go).
func (t *Table[T]) Used() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.used
}

// Capacity returns the table's fixed slot count.
func (t *Table[T]) Capacity() int { return t.capacity }

func (t *Table[T]) findFreeLocked() int {
	for i := range t.slots {
		if t.slots[i].record.ActiveId == ObjectIdUndefined {
			return i
		}
	}
	return -1
}

// AllocateNew implements spec.md §4.1's allocate_new: it must be
// called before any host-specific initialization. On success it
// returns an EXCLUSIVE token and a pointer into the slot's payload the
// caller may populate; the table lock is released before returning so
// the caller can perform lengthy host setup. The caller must call
// FinalizeNew exactly once, on every path including error paths.
func (t *Table[T]) AllocateNew(name string, creator ObjectId) (*Token, *T, error) {
	if len(name) > MaxNameLength {
		return nil, nil, NewError(ErrNameTooLong, "name exceeds MaxNameLength")
	}

	t.mu.Lock()
	if name != "" {
		if _, taken := t.names[name]; taken {
			t.mu.Unlock()
			return nil, nil, NewError(ErrNameTaken, name)
		}
	}
	idx := t.findFreeLocked()
	if idx < 0 {
		t.mu.Unlock()
		return nil, nil, NewError(ErrNoFreeIds, t.objType.String())
	}

	s := &t.slots[idx]
	s.generation++
	id := composeId(t.objType, s.generation, idx)
	s.record = CommonRecord{Name: name, ActiveId: ObjectIdReserved, CreatorId: creator, Refcount: 0}
	if name != "" {
		t.names[name] = idx
	}
	// s.payload is intentionally left as-is: a slot's payload memory is
	// reused across allocate/delete cycles (the slice never reallocates,
	// see NewTable), and any synchronization objects a primitive package
	// embeds in T (mutexes, condition variables) stay valid across
	// reuse. Each primitive's Create is responsible for resetting the
	// fields that carry state, the same way sync.Mutex's zero value
	// needs no explicit reset between uses.
	t.mu.Unlock()

	return &Token{mode: LockExclusive, objType: t.objType, index: idx, id: id}, &s.payload, nil
}

// FinalizeNew implements spec.md §4.1's finalize_new: it must be
// called exactly once per AllocateNew. On success it commits the
// slot's ActiveId and returns the final ObjectId; on failure it rolls
// the slot back to free. Either way it broadcasts the table's
// condition so WaitForStateChange callers can reobserve state.
func (t *Table[T]) FinalizeNew(tok *Token, success bool) (ObjectId, error) {
	t.mu.Lock()
	defer func() {
		t.cond.Broadcast()
		t.mu.Unlock()
	}()

	s := &t.slots[tok.index]
	if success {
		s.record.ActiveId = tok.id
		t.used++
		return tok.id, nil
	}

	if s.record.Name != "" {
		delete(t.names, s.record.Name)
	}
	s.record = CommonRecord{}
	return ObjectIdUndefined, NewError(ErrGeneric, "allocation failed after reservation")
}

// FindByName implements spec.md §4.1's find_by_name: a short scan
// under the table lock that only matches slots whose allocation has
// already committed (ActiveId neither free nor reserved) — a resource
// still mid-creation is not yet discoverable by name. Its name is
// already claimed, though: AllocateNew records it at reservation, so
// a concurrent create with the same name fails with ErrNameTaken.
func (t *Table[T]) FindByName(name string) (ObjectId, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx, ok := t.names[name]
	if !ok {
		return ObjectIdUndefined, NewError(ErrNameNotFound, name)
	}
	id := t.slots[idx].record.ActiveId
	if !ObjectIdDefined(id) {
		return ObjectIdUndefined, NewError(ErrNameNotFound, name)
	}
	return id, nil
}

// GetByID implements spec.md §4.1's get_by_id: validates id against
// the live slot and installs the requested lock mode.
func (t *Table[T]) GetByID(mode LockMode, id ObjectId) (*Token, *T, error) {
	objType, idx := decomposeId(id)
	if objType != t.objType || idx < 0 || idx >= t.capacity {
		return nil, nil, NewError(ErrInvalidId, "id out of range for this table")
	}

	t.mu.Lock()
	s := &t.slots[idx]
	if s.record.ActiveId != id {
		t.mu.Unlock()
		return nil, nil, NewError(ErrInvalidId, "stale or unknown id")
	}

	switch mode {
	case LockRef:
		s.record.Refcount++
		t.mu.Unlock()
		return &Token{mode: LockRef, objType: t.objType, index: idx, id: id}, &s.payload, nil

	case LockGlobal:
		// caller must Release to unlock.
		return &Token{mode: LockGlobal, objType: t.objType, index: idx, id: id}, &s.payload, nil

	case LockExclusive:
		if s.record.Refcount != 0 {
			t.mu.Unlock()
			return nil, nil, NewError(ErrTryAgain, "slot busy")
		}
		prev := s.record.ActiveId
		s.record.ActiveId = ObjectIdReserved
		t.mu.Unlock()
		return &Token{mode: LockExclusive, objType: t.objType, index: idx, id: id, prevActiveId: prev}, &s.payload, nil

	case LockReserved:
		t.mu.Unlock()
		return &Token{mode: LockReserved, objType: t.objType, index: idx, id: id}, &s.payload, nil

	default:
		t.mu.Unlock()
		return &Token{mode: LockNone, objType: t.objType, index: idx, id: id}, &s.payload, nil
	}
}

// Release reverses the effect of GetByID/AllocateNew without
// committing a state transition: it decrements a refcount, restores a
// cancelled exclusive reservation, or simply unlocks — matching
// whichever mode the token was issued under.
func (t *Table[T]) Release(tok *Token) {
	switch tok.mode {
	case LockRef:
		t.mu.Lock()
		s := &t.slots[tok.index]
		s.record.Refcount--
		if s.record.Refcount == 0 {
			t.cond.Broadcast()
		}
		t.mu.Unlock()

	case LockGlobal:
		t.mu.Unlock()

	case LockExclusive:
		t.mu.Lock()
		s := &t.slots[tok.index]
		s.record.ActiveId = tok.prevActiveId
		t.cond.Broadcast()
		t.mu.Unlock()
	}
	tok.mode = LockNone
}

// FinalizeDelete implements spec.md §4.1's finalize_delete: the
// delete-path counterpart of FinalizeNew. On success it frees the slot
// (and its name); on failure it restores the slot to its prior active
// state.
func (t *Table[T]) FinalizeDelete(tok *Token, success bool) error {
	t.mu.Lock()
	defer func() {
		t.cond.Broadcast()
		t.mu.Unlock()
	}()

	s := &t.slots[tok.index]
	if success {
		if s.record.Name != "" {
			delete(t.names, s.record.Name)
		}
		s.record = CommonRecord{}
		t.used--
		return nil
	}

	s.record.ActiveId = tok.prevActiveId
	return NewError(ErrGeneric, "delete failed, resource restored")
}

// Iterate implements spec.md §4.1's iterate / for_each_object: it
// snapshots the set of active ids matching creatorFilter (pass
// ObjectIdUndefined for no filter) under the table lock, releases the
// lock, then invokes fn for each — so fn may safely re-enter this
// table (e.g. via GetByID) without deadlocking. The set visited is a
// subset of the ids that were active at some point during the call,
// per spec.md §4.1's iteration guarantee.
func (t *Table[T]) Iterate(creatorFilter ObjectId, fn func(ObjectId)) {
	t.mu.Lock()
	ids := make([]ObjectId, 0, t.used)
	for i := range t.slots {
		id := t.slots[i].record.ActiveId
		if !ObjectIdDefined(id) {
			continue
		}
		if creatorFilter != ObjectIdUndefined && t.slots[i].record.CreatorId != creatorFilter {
			continue
		}
		ids = append(ids, id)
	}
	t.mu.Unlock()

	for _, id := range ids {
		fn(id)
	}
}

// GetByIDExclusiveWait is GetByID(LockExclusive, id) with retries: a
// slot busy with outstanding LockRef holders (e.g. a task blocked in a
// primitive's own Take/Get/Put wait loop) doesn't fail the caller
// outright with ErrTryAgain, it backs off via WaitForStateChange and
// tries again, up to maxAttempts. Callers that need "delete wakes
// blocked waiters" (spec.md §5) pair this with signaling their own
// record's condition variable first, so the blocked holders actually
// have a reason to unwind and release their LockRef token.
func (t *Table[T]) GetByIDExclusiveWait(id ObjectId, maxAttempts int) (*Token, *T, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tok, payload, err := t.GetByID(LockExclusive, id)
		if err == nil {
			return tok, payload, nil
		}
		lastErr = err
		if ResultOf(err) != ErrTryAgain {
			return nil, nil, err // id is gone or was never ours; retrying won't help
		}
		t.WaitForStateChange(attempt)
	}
	return nil, nil, lastErr
}

// WaitForStateChange implements spec.md §4.1's wait_for_state_change:
// a bounded, quadratic-backoff sleep used by callers polling a
// creation/deletion race, so they don't busy-spin on GetByID/
// FindByName. attempts should be the caller's own retry counter,
// starting at 1.
func (t *Table[T]) WaitForStateChange(attempts int) {
	if attempts > TimebaseMaxWaitAttempts {
		attempts = TimebaseMaxWaitAttempts
	}
	if attempts < 1 {
		attempts = 1
	}
	const tick = time.Millisecond
	time.Sleep(time.Duration(attempts*attempts) * tick)
}

// recordOf is a package-internal accessor used by stats.go/foreach.go
// implementations that need the CommonRecord without the typed
// payload.
func (t *Table[T]) recordOf(idx int) CommonRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots[idx].record
}

// Record returns the CommonRecord (name, creator id, refcount) backing
// tok's slot, letting primitive packages build GetInfo results without
// this package exposing per-slot locking to them directly.
func (t *Table[T]) Record(tok *Token) CommonRecord {
	return t.recordOf(tok.index)
}
