// Package osal implements the resource-identity and lifecycle core of an
// Operating System Abstraction Layer: a process-wide object-id allocator, a
// per-type resource table with a token-based transaction protocol, and the
// bookkeeping (stats, iteration, wait-for-state-change) that every OSAL
// primitive is built on.
//
// Primitive kinds (tasks, queues, semaphores, mutexes, timebases, console)
// live in their own subpackages and are built on top of Table[T] from this
// package. See SPEC_FULL.md for the full module map.
package osal
