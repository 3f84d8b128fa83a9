// Package host is the collaborator contract spec.md §9 calls for: a
// single capability struct replacing "#if HOST==..." conditional
// compilation. Of the primitive packages, only rwlock reads it (see
// rwlock.Configure); binsem always uses its own emulation, countsem
// always uses golang.org/x/sync/semaphore, and the timebase and console
// packages do not consult the mechanism fields.
//
// Grounded on the teacher's own per-OS dispatch (fuse/mount_linux.go,
// fuse/mount_darwin.go) generalized from build-tag selection into a
// runtime-inspectable struct, per spec.md §9's explicit instruction.
package host

// Capabilities describes what the underlying host actually provides.
// A host binding constructs one of these once at startup and passes it
// to rwlock.Configure; no other primitive package reads it.
type Capabilities struct {
	// NativeBinSem is true when the host provides a true binary
	// semaphore primitive (e.g. a VxWorks-style semBCreate). The binsem
	// package does not read it and always uses the give/take/flush
	// emulation of spec.md §4.3.
	NativeBinSem bool

	// NativeRwLock is true when the host provides a reader-writer
	// lock. When false, every rwlock operation returns
	// ErrNotImplemented rather than silently substituting a mutex
	// (spec.md §4.6).
	NativeRwLock bool

	// NativeCountSem is true when the host provides a native counting
	// semaphore. The countsem package does not read it and always
	// builds on golang.org/x/sync/semaphore.
	NativeCountSem bool

	// TimerMechanism names the host's external tick source, if any
	// ("signal", "interval-timer", "external-sync", ...). The timebase
	// package does not read it; a timebase uses its own internal ticker
	// unless TimebaseCreate is given an ExternalSyncFunc.
	TimerMechanism string

	// ConsoleMechanism names the host's console sink ("stdio", "bsp",
	// ...). The console package does not read it; console.Create writes
	// to the io.Writer it is given, or os.Stdout when that is nil.
	ConsoleMechanism string
}

// Default is a plausible capability set for a POSIX-like host running
// on the Go runtime: native counting semaphores and rwlocks are always
// available (the Go runtime provides both), but native binary
// semaphores are not (Go has no bare binary-semaphore primitive).
var Default = Capabilities{
	NativeBinSem:   false,
	NativeRwLock:   true,
	NativeCountSem: true,
}
