// Package rwlock implements the reader-writer lock passthrough of
// spec.md §4.6. When the host's Capabilities say no native rwlock is
// available, every operation returns ErrNotImplemented rather than
// silently substituting a mutex — spec.md §4.6 is explicit that this
// is checked by the test suite, not left to implementor discretion.
package rwlock

import (
	"sync"

	"github.com/flightsw/osal"
	"github.com/flightsw/osal/host"
)

// Info is returned by GetInfo.
type Info struct {
	Name      string
	CreatorId osal.ObjectId
}

type record struct {
	mu sync.RWMutex
}

var (
	table        = osal.NewTable[record](osal.ObjectTypeRwLock)
	capabilities = host.Default
)

// Configure installs the host capability set rwlock operations
// consult. Call it once at startup before creating any rwlocks; if it
// is never called, host.Default (NativeRwLock: true) is used.
func Configure(caps host.Capabilities) { capabilities = caps }

func unsupported() error {
	return osal.NewError(osal.ErrNotImplemented, "host does not provide a native rwlock")
}

// Create implements spec.md §4.6's create.
func Create(name string, creator osal.ObjectId) (osal.ObjectId, error) {
	if !capabilities.NativeRwLock {
		return osal.ObjectIdUndefined, unsupported()
	}
	tok, _, err := table.AllocateNew(name, creator)
	if err != nil {
		return osal.ObjectIdUndefined, err
	}
	return table.FinalizeNew(tok, true)
}

// Delete implements spec.md §4.6's delete.
func Delete(id osal.ObjectId) error {
	if !capabilities.NativeRwLock {
		return unsupported()
	}
	tok, _, err := table.GetByID(osal.LockExclusive, id)
	if err != nil {
		return err
	}
	return table.FinalizeDelete(tok, true)
}

// ReadTake implements spec.md §4.6's read_take.
func ReadTake(id osal.ObjectId) error {
	if !capabilities.NativeRwLock {
		return unsupported()
	}
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)
	rec.mu.RLock()
	return nil
}

// ReadGive implements spec.md §4.6's read_give.
func ReadGive(id osal.ObjectId) error {
	if !capabilities.NativeRwLock {
		return unsupported()
	}
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)
	rec.mu.RUnlock()
	return nil
}

// WriteTake implements spec.md §4.6's write_take.
func WriteTake(id osal.ObjectId) error {
	if !capabilities.NativeRwLock {
		return unsupported()
	}
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)
	rec.mu.Lock()
	return nil
}

// WriteGive implements spec.md §4.6's write_give.
func WriteGive(id osal.ObjectId) error {
	if !capabilities.NativeRwLock {
		return unsupported()
	}
	tok, rec, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return err
	}
	defer table.Release(tok)
	rec.mu.Unlock()
	return nil
}

// GetInfo implements spec.md §6's get_info.
func GetInfo(id osal.ObjectId) (Info, error) {
	if !capabilities.NativeRwLock {
		return Info{}, unsupported()
	}
	tok, _, err := table.GetByID(osal.LockRef, id)
	if err != nil {
		return Info{}, err
	}
	defer table.Release(tok)
	cr := table.Record(tok)
	return Info{Name: cr.Name, CreatorId: cr.CreatorId}, nil
}
