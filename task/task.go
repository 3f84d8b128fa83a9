// Package task implements the task primitive of spec.md §6: a
// goroutine-backed task table. The Go runtime scheduler doesn't expose
// priorities or thread identity the way a VxWorks/RTOS/POSIX host
// does, so SetPriority is accepted and stored for introspection only
// (see DESIGN.md), and most OSAL calls that need "the calling task"
// take its ObjectId explicitly rather than relying on a goroutine-
// local lookup the Go runtime doesn't provide. Register/CurrentId
// cover the one case that genuinely needs ambient identity, using
// context.Context as Go's substitute for the thread-local storage a
// native backend would reach for.
//
// Grounded on other_examples/.../sched.go's worker-goroutine-with-id
// pattern (workerTag := p.name + "#" + strconv.Itoa(workerID)).
package task

import (
	"context"
	"sync"
	"time"

	"github.com/flightsw/osal"
)

// Info is returned by GetInfo.
type Info struct {
	Name      string
	CreatorId osal.ObjectId
	Priority  int
	Exited    bool
	Detached  bool
}

type record struct {
	mu       sync.Mutex
	priority int
	exited   bool
	detached bool
	done     chan struct{}
}

var table = osal.NewTable[record](osal.ObjectTypeTask)

// Create implements spec.md §6's task create: entryFn runs on its own
// goroutine, receiving arg. The returned ObjectId is this task's
// identity for every OSAL call (mutex ownership, resource creator
// tracking, ForEachObject's creator filter) that needs to know which
// task is calling.
func Create(name string, creator osal.ObjectId, priority int, entryFn func(self osal.ObjectId, arg any), arg any) (osal.ObjectId, error) {
	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	rec.priority = priority
	rec.exited = false
	rec.detached = false
	rec.done = make(chan struct{})

	id, err := table.FinalizeNew(tok, true)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(exitSignal); !ok {
					rec.mu.Lock()
					rec.exited = true
					rec.mu.Unlock()
					close(rec.done)
					panic(r)
				}
			}
			rec.mu.Lock()
			rec.exited = true
			rec.mu.Unlock()
			close(rec.done)
		}()
		entryFn(id, arg)
	}()

	return id, nil
}

// Delete implements spec.md §6's task delete: it does not wait for
// the task to exit (that's Wait's job); it only frees the OSAL-side
// bookkeeping. A running goroutine that outlives its OSAL task id
// simply stops being discoverable via GetId/ForEachObject.
func Delete(id osal.ObjectId) error {
	tok, _, err := table.GetByID(osal.LockExclusive, id)
	if err != nil {
		return err
	}
	return table.FinalizeDelete(tok, true)
}

// Wait blocks until the task's entry function returns. It fails if the
// task has been Detach'd: a detached task's resources are reclaimed
// automatically on exit and are no longer eligible to be joined.
func Wait(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	detached := rec.detached
	rec.mu.Unlock()
	table.Release(tok)
	if detached {
		return osal.NewError(osal.ErrInvalidId, "task is detached, cannot be waited on")
	}
	<-rec.done
	return nil
}

// Detach implements spec.md §6's task detach. The original backend
// detaches the underlying pthread (`pthread_detach`, see
// original_source's os-impl-tasks.cxx) so the host reclaims its
// resources on exit without another thread joining it. A goroutine
// needs no such release — the Go runtime reclaims it regardless — so
// Detach's contract here is the observable half of that change: once
// detached, Wait refuses to block on the task, matching a detached
// pthread no longer being joinable.
func Detach(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	rec.detached = true
	rec.mu.Unlock()
	return nil
}

type currentIdKey struct{}

// Register implements spec.md §6's task register. Native backends
// bind the calling OS thread to its task id via thread-local storage
// (see original_source's `pthread_setspecific(QT_GlobalVars.ThreadKey,
// ...)`) so that code running deep in a call stack can recover "which
// task am I" without the id being threaded through every call. Go
// goroutines have no addressable thread-local storage; context.Context
// is the idiomatic substitute for exactly this kind of ambient,
// call-scoped identity. Register binds id into a derived context
// instead of mutating hidden per-thread state; pass the result down
// instead of the original ctx so CurrentId can recover it later.
func Register(ctx context.Context, id osal.ObjectId) context.Context {
	return context.WithValue(ctx, currentIdKey{}, id)
}

// CurrentId implements the zero-argument "get the calling task's own
// id" half of spec.md §6's get_id, recovering whatever a prior
// Register call bound to ctx. ok is false if ctx was never derived
// from a Register call.
func CurrentId(ctx context.Context) (id osal.ObjectId, ok bool) {
	id, ok = ctx.Value(currentIdKey{}).(osal.ObjectId)
	return id, ok
}

// Exit implements spec.md §6's task exit: a task calls this from
// within its own entry function to end execution cleanly.
func Exit() {
	panic(exitSignal{})
}

type exitSignal struct{}

// Delay implements spec.md §6's task delay: a straightforward
// time.Sleep, since any Go goroutine can suspend itself without
// naming which task it is.
func Delay(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

// SetPriority implements spec.md §6's set_priority: stored for
// GetInfo's benefit; the Go scheduler does not act on it (see the
// package doc comment and DESIGN.md).
func SetPriority(id osal.ObjectId, priority int) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	rec.priority = priority
	rec.mu.Unlock()
	return nil
}

// GetId implements spec.md §6's get_id_by_name, named get_id there for
// tasks specifically.
func GetId(name string) (osal.ObjectId, error) {
	return table.FindByName(name)
}

// Match implements spec.md §6's id_match_system_data/
// validate_system_data, folded into a single predicate-based check
// since no host binding exists here to match "system data" against
// (see SPEC_FULL.md §6).
func Match(id osal.ObjectId, predicate func(Info) bool) bool {
	info, err := GetInfo(id)
	if err != nil {
		return false
	}
	return predicate(info)
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
	defer rec.mu.Unlock()
	return Info{Name: cr.Name, CreatorId: cr.CreatorId, Priority: rec.priority, Exited: rec.exited, Detached: rec.detached}, nil
}
