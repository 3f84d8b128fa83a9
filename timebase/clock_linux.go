package timebase

import (
	"golang.org/x/sys/unix"
)

// NewMonotonicExternalSync returns an ExternalSyncFunc backed by
// CLOCK_MONOTONIC (spec.md §4.8's "External" timebase configuration
// for a host whose tick source is a hardware/kernel clock rather than
// this process's own ticker). Each call reports the number of
// microseconds elapsed since the previous call; the first call reports
// zero.
//
// Grounded on fuse/clone_linux.go's build-tagged golang.org/x/sys/unix
// usage — the teacher's own per-OS syscall dispatch pattern, here
// applied to clock_gettime instead of an ioctl.
func NewMonotonicExternalSync() ExternalSyncFunc {
	var lastNs int64
	return func() uint32 {
		var ts unix.Timespec
		if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
			return 0
		}
		nowNs := ts.Sec*1e9 + int64(ts.Nsec)
		if lastNs == 0 {
			lastNs = nowNs
			return 0
		}
		elapsedUs := (nowNs - lastNs) / 1000
		lastNs = nowNs
		if elapsedUs < 0 {
			elapsedUs = 0
		}
		if elapsedUs > int64(^uint32(0)) {
			elapsedUs = int64(^uint32(0))
		}
		return uint32(elapsedUs)
	}
}
