// Package timebase implements the shared timebase engine of
// spec.md §4.8: one monotonic tick source per timebase, a helper
// goroutine that awaits each tick and dispatches expired timer
// callbacks, and the registration handshake that prevents lost
// wakeups between the helper's startup and its first tick.
//
// Grounded on fuse/mountstate.go's background-goroutine-with-startup-
// handshake pattern and other_examples/.../sched.go's sync.Once-gated
// Start(). The helper's startup/error propagation is built on
// golang.org/x/sync/errgroup (a teacher dependency), the idiomatic
// way to hand a background goroutine's error back to its creator
// without a hand-rolled error channel: a panicking external sync
// function is recovered, turned into the helper's return error, and
// surfaced through g.Wait() for GetInfo to report.
package timebase

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flightsw/osal"
)

// Info is returned by GetInfo.
type Info struct {
	Name              string
	CreatorId         osal.ObjectId
	NominalIntervalUs uint32
	External          bool
	FreeRun           uint32
	HelperErr         error
}

// ExternalSyncFunc returns the number of microseconds elapsed since
// the previous call, per spec.md §4.8's "External" configuration.
type ExternalSyncFunc func() uint32

type timerEntry struct {
	id         osal.ObjectId
	name       string
	creatorId  osal.ObjectId
	callback   func(arg any)
	arg        any
	startUs    uint64
	intervalUs uint64
	nextExpiry uint64
	periodic   bool
	running    bool
	deleted    bool
	cond       *sync.Cond
}

type record struct {
	mu                sync.Mutex
	nominalIntervalUs uint32
	externalSync      ExternalSyncFunc
	registered        bool
	registeredCond    *sync.Cond
	freeRun           uint32
	now               uint64 // monotonic microsecond clock, this timebase's own accuracy unit
	timers            map[osal.ObjectId]*timerEntry
	stop              chan struct{}
	stopped           chan struct{}
	helperErr         error
}

var (
	table      = osal.NewTable[record](osal.ObjectTypeTimeBase)
	timerTable = osal.NewTable[timerEntry](osal.ObjectTypeTimeCb)
)

// TimebaseCreate implements spec.md §4.8's registration sequence: the
// helper goroutine marks the timebase registered and signals a startup
// condition; the caller waits on it before finalizing the id. The wait
// has no time bound, and the helper has no startup step that can fail,
// so TimebaseCreate never fails because of its helper; an error the
// helper returns later is reported through GetInfo's HelperErr.
func TimebaseCreate(name string, creator osal.ObjectId, nominalIntervalUs uint32, externalSync ExternalSyncFunc) (osal.ObjectId, error) {
	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}

	rec.nominalIntervalUs = nominalIntervalUs
	rec.externalSync = externalSync
	rec.registeredCond = sync.NewCond(&rec.mu)
	rec.timers = make(map[osal.ObjectId]*timerEntry)
	rec.stop = make(chan struct{})
	rec.stopped = make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		rec.mu.Lock()
		rec.registered = true
		rec.registeredCond.Broadcast()
		rec.mu.Unlock()
		return runHelper(rec)
	})

	// g.Wait() blocks until runHelper returns, which only happens once
	// TimebaseDelete closes rec.stop (or the external sync function
	// panics); capture whichever error it reports so GetInfo can
	// surface a helper failure instead of silently losing it.
	go func() {
		err := g.Wait()
		rec.mu.Lock()
		rec.helperErr = err
		rec.mu.Unlock()
	}()

	rec.mu.Lock()
	for !rec.registered {
		rec.registeredCond.Wait()
	}
	rec.mu.Unlock()

	return table.FinalizeNew(tok, true)
}

// runHelper is the tick-dispatch loop's driver: it awaits a tick (from
// either the internal ticker or the external sync function) then
// calls dispatchTick. Exactly one helper goroutine exists per
// timebase, per spec.md §4.8. It returns the error that stopped it, if
// any — a panicking external sync function is the only failure mode,
// since the internal ticker can't fail.
func runHelper(rec *record) error {
	defer close(rec.stopped)

	if rec.externalSync != nil {
		for {
			select {
			case <-rec.stop:
				return nil
			default:
			}
			elapsed, err := callExternalSync(rec.externalSync)
			if err != nil {
				return err
			}
			dispatchTick(rec, elapsed)
		}
	}

	interval := time.Duration(rec.nominalIntervalUs) * time.Microsecond
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rec.stop:
			return nil
		case <-ticker.C:
			dispatchTick(rec, uint32(interval/time.Microsecond))
			rec.mu.Lock()
			next := time.Duration(rec.nominalIntervalUs) * time.Microsecond
			rec.mu.Unlock()
			if next > 0 && next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// callExternalSync insulates the helper loop from a misbehaving,
// host-supplied sync function: a panic there is recovered and turned
// into an error the helper returns, rather than taking the whole
// timebase goroutine down uncleanly.
func callExternalSync(fn ExternalSyncFunc) (elapsed uint32, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = osal.NewError(osal.ErrGeneric, fmt.Sprintf("external sync function panicked: %v", r))
		}
	}()
	return fn(), nil
}

// dispatchTick implements spec.md §4.8's tick-dispatch loop: acquire
// the timebase's lock, fire every timer whose deadline has expired
// with the lock released (callbacks must be safely re-entrant), then
// return to waiting.
func dispatchTick(rec *record, elapsedUs uint32) {
	rec.mu.Lock()
	rec.now += uint64(elapsedUs)
	rec.freeRun++ // wraps naturally at 2^32, per spec.md §9's freerun contract

	var due []*timerEntry
	for _, t := range rec.timers {
		if t.deleted || t.startUs == 0 && t.intervalUs == 0 {
			continue
		}
		if rec.now >= t.nextExpiry {
			due = append(due, t)
		}
	}
	rec.mu.Unlock()

	for _, t := range due {
		t.cond.L.Lock()
		if t.deleted {
			t.cond.L.Unlock()
			continue
		}
		t.running = true
		t.cond.L.Unlock()

		t.callback(t.arg)

		rec.mu.Lock()
		if t.periodic {
			t.nextExpiry += t.intervalUs
		} else {
			// one-shot consumed: it stays registered (and keeps its
			// timebase from being deleted) until TimerDelete, but never
			// comes due again unless TimerSet re-arms it.
			t.nextExpiry = ^uint64(0)
		}
		rec.mu.Unlock()

		t.cond.L.Lock()
		t.running = false
		t.cond.Broadcast()
		t.cond.L.Unlock()
	}
}

// TimebaseDelete implements spec.md §4.8's delete: fails if any timer
// still references this timebase, since deletion never cascades
// (spec.md §7).
func TimebaseDelete(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockExclusive, id)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	remaining := len(rec.timers)
	rec.mu.Unlock()
	if remaining > 0 {
		table.Release(tok)
		return osal.NewError(osal.ErrGeneric, "timebase still has registered timers")
	}

	close(rec.stop)
	<-rec.stopped

	return table.FinalizeDelete(tok, true)
}

// GetFreeRun implements timebase_get_freerun (spec.md §9): a
// monotonic tick counter in the timebase's own accuracy unit that
// wraps every 2^32 ticks. Recommended polling frequency is twice per
// wrap, per the documented contract; this core does not enforce that,
// it only preserves the wraparound.
func GetFreeRun(id osal.ObjectId) (uint32, error) {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return 0, err
	}
	defer table.Release(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.freeRun, nil
}

// GetInfo implements spec.md §6's timebase_get_info.
func GetInfo(id osal.ObjectId) (Info, error) {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return Info{}, err
	}
	defer table.Release(tok)
	cr := table.Record(tok)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return Info{
		Name:              cr.Name,
		CreatorId:         cr.CreatorId,
		NominalIntervalUs: rec.nominalIntervalUs,
		External:          rec.externalSync != nil,
		FreeRun:           rec.freeRun,
		HelperErr:         rec.helperErr,
	}, nil
}
