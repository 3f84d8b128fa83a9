package osal

// LockMode is the access mode a Token was issued under. See
// SPEC_FULL.md §5 and spec.md §3 ("Token").
type LockMode int

const (
	// LockNone: validity check only, no lock held.
	LockNone LockMode = iota
	// LockGlobal: the table's lock is held; caller must Release.
	LockGlobal
	// LockRef: the slot's refcount was incremented, table lock released;
	// caller must Release.
	LockRef
	// LockExclusive: the slot was reserved (ActiveId set to the
	// reserved sentinel), table lock released; caller must finalize
	// via FinalizeNew/FinalizeDelete or cancel via Release.
	LockExclusive
	// LockReserved: continuation of an in-progress create/delete.
	LockReserved
)

// Token is the transient bookkeeping object every identity-layer entry
// point hands back: a locked or reserved access to one table slot. Its
// zero value is not valid; only Table[T] methods construct one.
type Token struct {
	mode    LockMode
	objType ObjectType
	index   int
	id      ObjectId

	// prevActiveId is the slot's ActiveId before this token reserved it,
	// restored on cancellation (Release of a LockExclusive token) or on
	// a failed FinalizeDelete.
	prevActiveId ObjectId
}

// ObjectId is the id this token refers to. For a freshly allocated,
// not-yet-finalized token this is the id that FinalizeNew will commit.
func (t *Token) ObjectId() ObjectId { return t.id }

// Mode reports the lock mode the token currently holds.
func (t *Token) Mode() LockMode { return t.mode }
