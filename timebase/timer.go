package timebase

import (
	"sync"

	"github.com/flightsw/osal"
)

// TimerInfo is returned by TimerGetInfo.
type TimerInfo struct {
	Name       string
	CreatorId  osal.ObjectId
	TimebaseId osal.ObjectId
	StartUs    uint64
	IntervalUs uint64
	Periodic   bool
}

// TimerAdd implements spec.md §6's timer_add: registers a (not yet
// armed) timer against timebaseId. Use TimerSet to arm it. Deleting
// timebaseId while any timer still references it fails, per
// spec.md §4.8.
func TimerAdd(name string, creator osal.ObjectId, timebaseId osal.ObjectId, callback func(arg any), arg any) (osal.ObjectId, error) {
	tbTok, tbRec, err := table.GetByID(osal.LockRef, timebaseId)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	defer table.Release(tbTok)

	tok, entry, err := timerTable.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}

	entry.id = tok.ObjectId()
	entry.name = name
	entry.creatorId = creator
	entry.callback = callback
	entry.arg = arg
	entry.deleted = false
	entry.running = false
	entry.cond = sync.NewCond(&sync.Mutex{})

	id, err := timerTable.FinalizeNew(tok, true)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}

	tbRec.mu.Lock()
	tbRec.timers[id] = entry
	tbRec.mu.Unlock()

	return id, nil
}

// TimerSet implements spec.md §6's timer_set / spec.md §4.8's set:
// fails if both startUs and intervalUs are zero. Requested values
// smaller than the parent timebase's accuracy are rounded up (a debug
// warning, not an error, per spec.md §4.8).
func TimerSet(id osal.ObjectId, timebaseId osal.ObjectId, startUs, intervalUs uint64) error {
	if startUs == 0 && intervalUs == 0 {
		return osal.NewError(osal.TimerErrInvalidArgs, "start and interval are both zero")
	}

	tbTok, tbRec, err := table.GetByID(osal.LockRef, timebaseId)
	if err != nil {
		return err
	}
	defer table.Release(tbTok)

	tok, entry, err := timerTable.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer timerTable.Release(tok)

	accuracy := uint64(tbRec.nominalIntervalUs)
	if accuracy > 0 {
		if startUs > 0 && startUs < accuracy {
			osal.DefaultLogger.Debugf("timer %v: start %dus rounded up to timebase accuracy %dus", id, startUs, accuracy)
			startUs = accuracy
		}
		if intervalUs > 0 && intervalUs < accuracy {
			osal.DefaultLogger.Debugf("timer %v: interval %dus rounded up to timebase accuracy %dus", id, intervalUs, accuracy)
			intervalUs = accuracy
		}
	}

	tbRec.mu.Lock()
	defer tbRec.mu.Unlock()
	entry.startUs = startUs
	entry.intervalUs = intervalUs
	entry.periodic = intervalUs > 0
	entry.nextExpiry = tbRec.now + startUs
	return nil
}

// TimerDelete implements spec.md §4.8's delete: if the timer's
// callback is currently executing, it waits for that callback to
// return before removing the timer (a no-op wait if the callback
// isn't running). Deleting a timer from within its own callback is
// supported by deferring the removal to after dispatchTick's callback
// invocation returns (see timebase.go's dispatchTick).
func TimerDelete(id osal.ObjectId, timebaseId osal.ObjectId) error {
	tbTok, tbRec, err := table.GetByID(osal.LockRef, timebaseId)
	if err != nil {
		return err
	}
	defer table.Release(tbTok)

	tok, entry, err := timerTable.GetByID(osal.LockExclusive, id)
	if err != nil {
		return err
	}

	entry.cond.L.Lock()
	for entry.running {
		entry.cond.Wait()
	}
	entry.deleted = true
	entry.cond.L.Unlock()

	tbRec.mu.Lock()
	delete(tbRec.timers, id)
	tbRec.mu.Unlock()

	return timerTable.FinalizeDelete(tok, true)
}

// TimerGetIdByName implements spec.md §6's timer_get_id_by_name.
func TimerGetIdByName(name string) (osal.ObjectId, error) {
	return timerTable.FindByName(name)
}

// TimerGetInfo implements spec.md §6's timer_get_info.
func TimerGetInfo(id osal.ObjectId, timebaseId osal.ObjectId) (TimerInfo, error) {
	tbTok, tbRec, err := table.GetByID(osal.LockRef, timebaseId)
	if err != nil {
		return TimerInfo{}, err
	}
	defer table.Release(tbTok)

	tok, entry, err := timerTable.GetByID(osal.LockRef, id)
	if err != nil {
		return TimerInfo{}, err
	}
	defer timerTable.Release(tok)

	cr := timerTable.Record(tok)

	tbRec.mu.Lock()
	defer tbRec.mu.Unlock()
	return TimerInfo{
		Name:       cr.Name,
		CreatorId:  cr.CreatorId,
		TimebaseId: timebaseId,
		StartUs:    entry.startUs,
		IntervalUs: entry.intervalUs,
		Periodic:   entry.periodic,
	}, nil
}

// TimebaseSet implements spec.md §6's timebase_set: updates the
// nominal tick interval for an internally-driven timebase. The helper
// picks up the new interval after its next tick.
func TimebaseSet(id osal.ObjectId, nominalIntervalUs uint32) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.nominalIntervalUs = nominalIntervalUs
	return nil
}
