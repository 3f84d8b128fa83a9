// Package mutex implements the recursive-mutex passthrough of
// spec.md §4.5. Recursion is detected by comparing the calling task's
// ObjectId (every OSAL call already carries one, per the task package)
// rather than a goroutine id, which the Go runtime deliberately does
// not expose — see DESIGN.md for why this is the idiomatic rendering
// rather than a runtime-internal hack.
//
// Not callable from interrupt context, per spec.md §4.5; there is no
// interrupt context on the Go runtime, so that restriction is
// documentation only here.
package mutex

import (
	"sync"

	"github.com/flightsw/osal"
)

// Info is returned by GetInfo.
type Info struct {
	Name      string
	CreatorId osal.ObjectId
	Owner     osal.ObjectId
	Depth     int
}

type record struct {
	mu      sync.Mutex
	cond    *sync.Cond
	once    sync.Once
	owner   osal.ObjectId
	depth   int
	deleted bool
}

func (r *record) ensureCond() {
	r.once.Do(func() { r.cond = sync.NewCond(&r.mu) })
}

var table = osal.NewTable[record](osal.ObjectTypeMutex)

// maxDeleteWaitAttempts bounds how long Delete backs off for a blocked
// Take to notice rec.deleted and unwind; see
// osal.Table.GetByIDExclusiveWait.
const maxDeleteWaitAttempts = 200

// Create implements spec.md §4.5's create.
func Create(name string, creator osal.ObjectId) (osal.ObjectId, error) {
	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	rec.owner = osal.ObjectIdUndefined
	rec.depth = 0
	rec.deleted = false
	return table.FinalizeNew(tok, true)
}

// Delete implements spec.md §4.5's delete: wakes any task blocked in
// Take by marking the record deleted before reclaiming the slot, since
// a blocked Take holds a LockRef for the duration of its wait.
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

// Take implements spec.md §4.5's take: blocks until owned by no task,
// or re-enters immediately if the calling task already owns it
// (recursive-capable, per spec.md §4.2/§4.5).
func Take(id osal.ObjectId, taskId osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.ensureCond()

	for rec.owner != osal.ObjectIdUndefined && rec.owner != taskId && !rec.deleted {
		rec.cond.Wait()
	}
	if rec.deleted {
		return osal.NewError(osal.ErrInvalidId, "mutex deleted")
	}
	rec.owner = taskId
	rec.depth++
	return nil
}

// Give implements spec.md §4.5's give: releases one level of
// recursion; the mutex only becomes free for other tasks once depth
// reaches zero.
func Give(id osal.ObjectId, taskId osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.ensureCond()

	if rec.owner != taskId {
		return osal.NewError(osal.ErrGeneric, "give by non-owner task")
	}
	rec.depth--
	if rec.depth == 0 {
		rec.owner = osal.ObjectIdUndefined
		rec.cond.Signal()
	}
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
	owner, depth := rec.owner, rec.depth
	rec.mu.Unlock()

	return Info{Name: cr.Name, CreatorId: cr.CreatorId, Owner: owner, Depth: depth}, nil
}
