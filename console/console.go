// Package console implements the console output engine of spec.md
// §4.9: a ring buffer of text fragments, written either synchronously
// (direct to the host sink) or asynchronously (appended to the ring
// and drained by a dedicated helper task).
//
// Grounded on fuse/latencymap.go's mutex-guarded aggregate (simplest
// "guarded mutable state drained on demand" shape in the teacher) and
// the async-drain pattern recovered from
// original_source/src/os/qt/src/os-impl-console.cxx. Each async
// drain task is tagged with a github.com/google/uuid id for log
// correlation, the pack's idiom (via jontk-slurm-client's dependency)
// for giving long-lived worker goroutines a stable log identity.
package console

import (
	"io"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/flightsw/osal"
)

// RingCapacity bounds the number of buffered fragments in async mode.
// Once full, the oldest fragment is dropped (with a logged warning)
// rather than blocking the writer — spec.md §4.9 describes the ring
// but not its overflow policy; drop-oldest is the choice recorded in
// SPEC_FULL.md §11.
const RingCapacity = 256

// Info is returned by GetInfo.
type Info struct {
	Name      string
	CreatorId osal.ObjectId
	Async     bool
	Dropped   uint64
}

type record struct {
	mu       sync.Mutex
	cond     *sync.Cond
	sink     io.Writer
	async    bool
	ring     []string
	dropped  uint64
	shutdown bool
	drainID  uuid.UUID
	done     chan struct{}
}

var table = osal.NewTable[record](osal.ObjectTypeConsole)

// Create implements spec.md §4.9's create. When async is true, a
// dedicated helper task is spawned to drain the ring; it exits once
// Delete is called (the shutdown sentinel spec.md §4.9 describes).
func Create(name string, creator osal.ObjectId, async bool, sink io.Writer) (osal.ObjectId, error) {
	if sink == nil {
		sink = os.Stdout
	}

	tok, rec, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	rec.cond = sync.NewCond(&rec.mu)
	rec.sink = sink
	rec.async = async
	rec.ring = nil
	rec.dropped = 0
	rec.shutdown = false

	if async {
		rec.drainID = uuid.New()
		rec.done = make(chan struct{})
		go drain(rec)
	}

	return table.FinalizeNew(tok, true)
}

// Write implements spec.md §4.9's write path: synchronous consoles
// emit directly; asynchronous consoles append to the ring and signal
// the drain task.
func Write(id osal.ObjectId, text string) error {
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)

	if !rec.async {
		_, werr := io.WriteString(rec.sink, text)
		if werr != nil {
			return osal.NewError(osal.ErrGeneric, werr.Error())
		}
		return nil
	}

	rec.mu.Lock()
	if len(rec.ring) >= RingCapacity {
		rec.ring = rec.ring[1:]
		rec.dropped++
		osal.DefaultLogger.Debugf("console %v: ring full, dropped oldest fragment", id)
	}
	rec.ring = append(rec.ring, text)
	rec.cond.Signal()
	rec.mu.Unlock()
	return nil
}

// drain is the dedicated helper task spec.md §4.9 describes for
// asynchronous consoles: it blocks for ring data, writes it to the
// sink, and exits once the record is marked shut down — the "global
// state word equals the shutdown sentinel" check from spec.md §4.9,
// rendered here as rec.shutdown under rec.mu.
func drain(rec *record) {
	defer close(rec.done)
	for {
		rec.mu.Lock()
		for len(rec.ring) == 0 && !rec.shutdown {
			rec.cond.Wait()
		}
		if len(rec.ring) == 0 && rec.shutdown {
			rec.mu.Unlock()
			return
		}
		batch := rec.ring
		rec.ring = nil
		rec.mu.Unlock()

		for _, frag := range batch {
			if _, err := io.WriteString(rec.sink, frag); err != nil {
				osal.DefaultLogger.Debugf("console drain %s: write failed: %v", rec.drainID, err)
			}
		}
	}
}

// Delete implements spec.md §4.9's delete: signals the drain task's
// shutdown sentinel and waits for it to exit before releasing the
// slot, so no write can race a deleted console's sink.
func Delete(id osal.ObjectId) error {
	tok, rec, err := table.GetByID(osal.LockExclusive, id)
	if err != nil {
		return err
	}

	if rec.async {
		rec.mu.Lock()
		rec.shutdown = true
		rec.cond.Broadcast()
		rec.mu.Unlock()
		<-rec.done
	}

	return table.FinalizeDelete(tok, true)
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
	defer rec.mu.Unlock()
	return Info{Name: cr.Name, CreatorId: cr.CreatorId, Async: rec.async, Dropped: rec.dropped}, nil
}
