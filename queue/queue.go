// Package queue implements the message-queue transfer contract of
// spec.md §4.7: a bounded FIFO of variable-length messages up to a
// per-queue maximum, with blocking get/put and the spec's overflow and
// truncation policies.
//
// Grounded on other_examples/.../slot_table.go's mutex-guarded
// fixed-size slice (for the ring storage) and the select/timer
// blocking idiom of other_examples/.../sched.go (for Get/Put's
// timeout handling).
package queue

import (
	"sync"
	"time"

	"github.com/flightsw/osal"
)

// Info is returned by GetInfo.
type Info struct {
	Name         string
	CreatorId    osal.ObjectId
	MaxDepth     int
	MaxSize      int
	CurrentCount int
}

type record struct {
	mu       sync.Mutex
	cond     *sync.Cond
	condInit sync.Once
	ring     [][]byte
	maxDepth int
	maxSize  int
	head     int
	count    int
	deleted  bool
}

func (r *record) ensureCond() {
	r.condInit.Do(func() { r.cond = sync.NewCond(&r.mu) })
}

// maxDeleteWaitAttempts bounds how long Delete backs off for a blocked
// Put/Get to notice rec.deleted and unwind; see
// osal.Table.GetByIDExclusiveWait.
const maxDeleteWaitAttempts = 200

// waitUntil blocks on r.cond until woken or deadline passes, returning
// false on timeout. r.mu must be held on entry and is held again on
// return, matching sync.Cond.Wait's contract. Grounded on the same
// AfterFunc-driven broadcast used in binsem.waitWithTimeout.
func (r *record) waitUntil(deadline time.Time) bool {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	timer := time.AfterFunc(remaining, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()
	r.cond.Wait()
	return time.Now().Before(deadline)
}

var table = osal.NewTable[record](osal.ObjectTypeQueue)

// Create implements spec.md §4.7's create path. If maxDepth exceeds
// osal.QueueHostLimit: in permissive mode (osal.PermissiveQueueDepth)
// it is silently truncated to the limit; otherwise creation fails with
// QueueInvalidSize. The choice is build-static, per spec.md §4.7.
func Create(name string, creator osal.ObjectId, maxDepth, maxSize int) (osal.ObjectId, error) {
	if maxDepth <= 0 || maxSize <= 0 {
		return osal.ObjectIdUndefined, osal.NewError(osal.QueueInvalidSize, "maxDepth/maxSize must be positive")
	}
	if maxDepth > osal.QueueHostLimit {
		if !osal.PermissiveQueueDepth {
			return osal.ObjectIdUndefined, osal.NewError(osal.QueueInvalidSize, "maxDepth exceeds host limit")
		}
		maxDepth = osal.QueueHostLimit
	}

	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	rec.ensureCond()
	rec.ring = make([][]byte, maxDepth)
	rec.maxDepth = maxDepth
	rec.maxSize = maxSize
	rec.head = 0
	rec.count = 0
	rec.deleted = false

	return table.FinalizeNew(tok, true)
}

// Delete implements spec.md §4.7's delete: drains the ring and wakes
// every blocked Get/Put with ErrInvalidId. Blocked callers hold a
// LockRef token for as long as they're waiting, so this marks the
// record deleted and broadcasts first (letting them unwind and
// release it), then waits for the slot to go idle before reclaiming
// it.
func Delete(id osal.ObjectId) error {
	peekTok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	rec.ensureCond()
	rec.deleted = true
	for i := range rec.ring {
		rec.ring[i] = nil
	}
	rec.count = 0
	rec.cond.Broadcast()
	rec.mu.Unlock()
	table.Release(peekTok)

	tok, _, err := table.GetByIDExclusiveWait(id, maxDeleteWaitAttempts)
	if err != nil {
		return err
	}
	return table.FinalizeDelete(tok, true)
}

// Put implements spec.md §4.7's put. size is validated against the
// queue's maxSize (zero-size messages are rejected with
// ErrInvalidSize, per spec.md §8's boundary behavior); if the queue is
// full, Put fails with QueueFull when timeout is osal.Check, or blocks
// per timeout otherwise.
func Put(id osal.ObjectId, data []byte, timeout osal.Timeout) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	if len(data) == 0 {
		return osal.NewError(osal.ErrInvalidSize, "zero-size message")
	}
	if len(data) > rec.maxSize {
		return osal.NewError(osal.QueueInvalidSize, "message exceeds max_size")
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.ensureCond()

	deadline, hasDeadline := deadlineFor(timeout)
	for rec.count == rec.maxDepth && !rec.deleted {
		if timeout == osal.Check {
			return osal.NewError(osal.QueueFull, "queue full")
		}
		if hasDeadline {
			if !rec.waitUntil(deadline) {
				return osal.NewError(osal.QueueTimeout, "put timed out")
			}
		} else {
			rec.cond.Wait()
		}
	}
	if rec.deleted {
		return osal.NewError(osal.ErrInvalidId, "queue deleted")
	}

	msg := make([]byte, len(data))
	copy(msg, data)
	tail := (rec.head + rec.count) % rec.maxDepth
	rec.ring[tail] = msg
	rec.count++
	rec.cond.Broadcast()
	return nil
}

// Get implements spec.md §4.7's get. If the stored message is larger
// than len(buffer), Get copies len(buffer) bytes, returns
// QueueInvalidSize, and still consumes the message from the ring —
// per spec.md §4.7's explicit truncation policy. sizeCopied reports
// the number of bytes actually written to buffer.
func Get(id osal.ObjectId, buffer []byte, timeout osal.Timeout) (sizeCopied int, err error) {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return 0, err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.ensureCond()

	deadline, hasDeadline := deadlineFor(timeout)
	for rec.count == 0 && !rec.deleted {
		if timeout == osal.Check {
			return 0, osal.NewError(osal.QueueEmpty, "queue empty")
		}
		if hasDeadline {
			if !rec.waitUntil(deadline) {
				return 0, osal.NewError(osal.QueueTimeout, "get timed out")
			}
		} else {
			rec.cond.Wait()
		}
	}
	if rec.deleted {
		return 0, osal.NewError(osal.ErrInvalidId, "queue deleted")
	}

	msg := rec.ring[rec.head]
	rec.ring[rec.head] = nil
	rec.head = (rec.head + 1) % rec.maxDepth
	rec.count--
	rec.cond.Broadcast()

	n := copy(buffer, msg)
	if n < len(msg) {
		return n, osal.NewError(osal.QueueInvalidSize, "buffer smaller than stored message")
	}
	return n, nil
}

func deadlineFor(timeout osal.Timeout) (time.Time, bool) {
	if timeout <= osal.Check {
		return time.Time{}, false
	}
	return time.Now().Add(time.Duration(timeout) * time.Millisecond), true
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
	current := rec.count
	rec.mu.Unlock()

	return Info{Name: cr.Name, CreatorId: cr.CreatorId, MaxDepth: rec.maxDepth, MaxSize: rec.maxSize, CurrentCount: current}, nil
}
