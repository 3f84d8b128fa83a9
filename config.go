package osal

// MaxNameLength is the per-build name-length limit referenced by
// spec.md §4.1 ("typical: 20"); names longer than this are rejected
// with ErrNameTooLong.
const MaxNameLength = 20

// QueueHostLimit is the host-imposed maximum queue depth referenced by
// spec.md §4.7. PermissiveQueueDepth controls whether queue creation
// silently truncates to QueueHostLimit (true) or fails with
// QueueInvalidSize (false, the default — matches the teacher's general
// preference for failing loudly over silently degrading behavior, see
// fuse/handle.go's panics on protocol violations).
const QueueHostLimit = 4096

var PermissiveQueueDepth = false

// TimebaseMaxWaitAttempts bounds the quadratic backoff used by
// Table[T].WaitForStateChange (spec.md §4.1): attempts beyond this
// saturate at the cap instead of growing further.
const TimebaseMaxWaitAttempts = 10
