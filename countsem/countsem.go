// Package countsem implements the counting-semaphore passthrough of
// spec.md §4.4 over golang.org/x/sync/semaphore.Weighted, the teacher's
// own dependency and exactly the "native counting semaphore with a
// bound" shape the spec calls for.
package countsem

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/flightsw/osal"
)

// Info is returned by GetInfo.
type Info struct {
	Name      string
	CreatorId osal.ObjectId
	MaxValue  int64
}

type record struct {
	sem        *semaphore.Weighted
	maxValue   int64
	deleted    chan struct{}
	deleteFlag int32 // CAS-guarded so a reused slot's channel is closed at most once
}

var table = osal.NewTable[record](osal.ObjectTypeCountSem)

// maxDeleteWaitAttempts bounds how long Delete backs off for a blocked
// Take to notice rec.deleted and unwind; see
// osal.Table.GetByIDExclusiveWait.
const maxDeleteWaitAttempts = 200

// Create implements spec.md §4.4's create. maxValue bounds the
// semaphore per the host's build-time constant (spec.md §4.4);
// initialValue must be in [0, maxValue].
func Create(name string, creator osal.ObjectId, initialValue, maxValue int64) (osal.ObjectId, error) {
	if maxValue <= 0 || initialValue < 0 || initialValue > maxValue {
		return osal.ObjectIdUndefined, osal.NewError(osal.InvalidSemValue, "initial/max value out of range")
	}

	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	rec.sem = semaphore.NewWeighted(maxValue)
	rec.maxValue = maxValue
	rec.deleted = make(chan struct{})
	atomic.StoreInt32(&rec.deleteFlag, 0)
	// Pre-acquire (maxValue - initialValue) units so the semaphore
	// starts at initialValue outstanding permits, mirroring a native
	// counting semaphore created with an initial count.
	if initialValue < maxValue {
		_ = rec.sem.Acquire(context.Background(), maxValue-initialValue)
	}

	return table.FinalizeNew(tok, true)
}

// Delete implements spec.md §4.4's delete: a task blocked in Take
// holds a LockRef for the duration of its wait, so this closes the
// record's deleted channel (unblocking rec.sem.Acquire's context)
// before reclaiming the slot.
func Delete(id osal.ObjectId) error {
	peekTok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	if atomic.CompareAndSwapInt32(&rec.deleteFlag, 0, 1) {
		close(rec.deleted)
	}
	table.Release(peekTok)

	tok, _, err := table.GetByIDExclusiveWait(id, maxDeleteWaitAttempts)
	if err != nil {
		return err
	}
	return table.FinalizeDelete(tok, true)
}

// Give implements spec.md §4.4's give: non-blocking, safe to call from
// an interrupt-context equivalent (it never blocks or allocates).
func Give(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)
	rec.sem.Release(1)
	return nil
}

// Take implements spec.md §4.4's take: blocks per timeout, with no
// flush operation (counting semaphores don't expose one, per spec.md
// §4.4).
func Take(ctx context.Context, id osal.ObjectId, timeout osal.Timeout) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	switch {
	case timeout == osal.Check:
		select {
		case <-rec.deleted:
			return osal.NewError(osal.ErrInvalidId, "countsem deleted")
		default:
		}
		if !rec.sem.TryAcquire(1) {
			return osal.NewError(osal.SemTimeout, "would block")
		}
		return nil
	case timeout == osal.Pend:
		dctx, cancel := withDeleted(ctx, rec.deleted)
		defer cancel()
		if err := rec.sem.Acquire(dctx, 1); err != nil {
			select {
			case <-rec.deleted:
				return osal.NewError(osal.ErrInvalidId, "countsem deleted")
			default:
			}
			return osal.NewError(osal.ErrGeneric, err.Error())
		}
		return nil
	default:
		cctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Millisecond)
		defer cancel()
		dctx, cancel2 := withDeleted(cctx, rec.deleted)
		defer cancel2()
		if err := rec.sem.Acquire(dctx, 1); err != nil {
			select {
			case <-rec.deleted:
				return osal.NewError(osal.ErrInvalidId, "countsem deleted")
			default:
			}
			return osal.NewError(osal.SemTimeout, "take timed out")
		}
		return nil
	}
}

// withDeleted derives a context that's cancelled when parent is done
// or deleted is closed, whichever comes first — the bridge from this
// package's own shutdown signal to semaphore.Weighted's ctx-based
// Acquire.
func withDeleted(parent context.Context, deleted chan struct{}) (context.Context, context.CancelFunc) {
	dctx, cancel := context.WithCancel(parent)
	go func() {
		select {
		case <-deleted:
			cancel()
		case <-dctx.Done():
		}
	}()
	return dctx, cancel
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
	return Info{Name: cr.Name, CreatorId: cr.CreatorId, MaxValue: rec.maxValue}, nil
}
