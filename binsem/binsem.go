// Package binsem implements the binary-semaphore simulation protocol
// of spec.md §4.3: a {current_value, flush_counter} state machine
// guarded by a mutex and condition variable, used on hosts (like this
// one, running on the bare Go runtime) that don't provide a native
// binary semaphore.
//
// Grounded on other_examples/.../slot_pool.go's mutex+sync.Cond
// acquire/release shape, generalized to the give/take/flush state
// machine spec.md §4.3 specifies bit-for-bit.
package binsem

import (
	"sync"
	"time"

	"github.com/flightsw/osal"
)

// Info is returned by GetInfo.
type Info struct {
	Name         string
	CreatorId    osal.ObjectId
	CurrentValue int
}

type record struct {
	mu           sync.Mutex
	cond         *sync.Cond
	currentValue int
	flushCounter uint64
	condInit     sync.Once
	deleted      bool
}

// maxDeleteWaitAttempts bounds how long Delete will back off for
// blocked Take callers to notice rec.deleted and unwind before giving
// up; see osal.Table.GetByIDExclusiveWait.
const maxDeleteWaitAttempts = 200

func (r *record) ensureCond() {
	r.condInit.Do(func() { r.cond = sync.NewCond(&r.mu) })
}

var table = osal.NewTable[record](osal.ObjectTypeBinSem)

// Create implements spec.md §4.3's create: initialValue is clamped to
// {0,1} — a value greater than 1 is silently reduced to 1, preserving
// the historical VxWorks-compatible behavior the spec calls out.
func Create(name string, creator osal.ObjectId, initialValue int) (osal.ObjectId, error) {
	if initialValue > 1 {
		initialValue = 1
	}
	if initialValue < 0 {
		initialValue = 0
	}

	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	rec.ensureCond()
	rec.currentValue = initialValue
	rec.flushCounter = 0
	rec.deleted = false

	id, err := table.FinalizeNew(tok, true)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	return id, nil
}

// Delete implements spec.md §4.3's delete. Waiters blocked in Take are
// woken with ErrInvalidId, per spec.md §5's deletion-wakes-waiters
// rule: this first marks the record deleted and broadcasts so every
// blocked Take can notice and unwind, then waits for them to release
// their reference before reclaiming the slot.
func Delete(id osal.ObjectId) error {
	peekTok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	rec.ensureCond()
	rec.deleted = true
	rec.cond.Broadcast()
	rec.mu.Unlock()
	table.Release(peekTok)

	tok, _, err := table.GetByIDExclusiveWait(id, maxDeleteWaitAttempts)
	if err != nil {
		return err
	}
	return table.FinalizeDelete(tok, true)
}

// Give implements spec.md §4.3's give: acquire mutex, set value to 1,
// signal one waiter, release. Taking the lock even though a native
// binsem's give would not need to is required to avoid a lost-wakeup
// race against a concurrent Take.
func Give(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	rec.ensureCond()
	rec.currentValue = 1
	rec.cond.Signal()
	rec.mu.Unlock()
	return nil
}

// Take implements spec.md §4.3's take: blocks (per timeout) until
// current_value becomes 1 or a Flush occurs. A Flush is detected via a
// snapshot of flush_counter taken at entry: if it has moved, Take
// returns success without decrementing current_value, exactly as
// spec.md §4.3 and the "flush releases all waiters" scenario (spec.md
// §8 scenario 1) require.
func Take(id osal.ObjectId, timeout osal.Timeout) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.ensureCond()

	snapshot := rec.flushCounter

	if timeout == osal.Check {
		if rec.deleted {
			return osal.NewError(osal.ErrInvalidId, "binsem deleted")
		}
		if rec.currentValue == 0 && rec.flushCounter == snapshot {
			return osal.NewError(osal.SemTimeout, "would block")
		}
		if rec.flushCounter != snapshot {
			return nil
		}
		rec.currentValue = 0
		return nil
	}

	if timeout == osal.Pend {
		for rec.currentValue == 0 && rec.flushCounter == snapshot && !rec.deleted {
			rec.cond.Wait()
		}
		if rec.deleted {
			return osal.NewError(osal.ErrInvalidId, "binsem deleted")
		}
		if rec.flushCounter != snapshot {
			return nil
		}
		rec.currentValue = 0
		return nil
	}

	deadline := time.Now().Add(time.Duration(timeout) * time.Millisecond)
	for rec.currentValue == 0 && rec.flushCounter == snapshot && !rec.deleted {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return osal.NewError(osal.SemTimeout, "take timed out")
		}
		waitWithTimeout(rec, remaining)
	}
	if rec.deleted {
		return osal.NewError(osal.ErrInvalidId, "binsem deleted")
	}
	if rec.flushCounter != snapshot {
		return nil
	}
	rec.currentValue = 0
	return nil
}

// waitWithTimeout wakes rec.cond.Wait() early if remaining elapses, by
// racing a timer-driven Broadcast against the real wakeup. rec.mu is
// held by the caller on entry and on return, matching sync.Cond.Wait's
// own contract.
func waitWithTimeout(rec *record, remaining time.Duration) {
	timer := time.AfterFunc(remaining, func() {
		rec.mu.Lock()
		rec.cond.Broadcast()
		rec.mu.Unlock()
	})
	defer timer.Stop()
	rec.cond.Wait()
}

// Flush implements spec.md §4.3's flush: increments flush_counter and
// broadcasts, releasing every waiter without consuming the value.
func Flush(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	rec.ensureCond()
	rec.flushCounter++
	rec.cond.Broadcast()
	rec.mu.Unlock()
	return nil
}

// GetIdByName implements spec.md §6's get_id_by_name.
func GetIdByName(name string) (osal.ObjectId, error) {
	return table.FindByName(name)
}

// GetInfo implements spec.md §6's get_info.
func GetInfo(id osal.ObjectId) (Info, error) {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return Info{}, err
	}
	defer table.Release(tok)

	cr := table.Record(tok)
	rec.mu.Lock()
	value := rec.currentValue
	rec.mu.Unlock()

	return Info{Name: cr.Name, CreatorId: cr.CreatorId, CurrentValue: value}, nil
}
