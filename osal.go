package osal

import "fmt"

// ObjectId is the opaque 32-bit handle every OSAL resource is known by.
// The upper 16 bits carry the object type tag, the lower 16 bits an
// opaque serial (a rolling generation over the slot index — see
// idmap.go). Values are never meaningful outside this process and are
// not capabilities: holding one grants no authority beyond what the
// issuing table's own access checks allow.
type ObjectId uint32

// ObjectType is the upper-16-bit type tag of an ObjectId.
type ObjectType uint16

const (
	ObjectTypeUndefined ObjectType = 0
	ObjectTypeTask      ObjectType = 1
	ObjectTypeQueue     ObjectType = 2
	ObjectTypeCountSem  ObjectType = 3
	ObjectTypeBinSem    ObjectType = 4
	ObjectTypeMutex     ObjectType = 5
	ObjectTypeStream    ObjectType = 6
	ObjectTypeDir       ObjectType = 7
	ObjectTypeTimeBase  ObjectType = 8
	ObjectTypeTimeCb    ObjectType = 9
	ObjectTypeModule    ObjectType = 10
	ObjectTypeFileSys   ObjectType = 11
	ObjectTypeConsole   ObjectType = 12
	ObjectTypeRwLock    ObjectType = 13
	ObjectTypeUser      ObjectType = 16
)

var objectTypeNames = map[ObjectType]string{
	ObjectTypeUndefined: "UNDEFINED",
	ObjectTypeTask:      "TASK",
	ObjectTypeQueue:     "QUEUE",
	ObjectTypeCountSem:  "COUNTSEM",
	ObjectTypeBinSem:    "BINSEM",
	ObjectTypeMutex:     "MUTEX",
	ObjectTypeStream:    "STREAM",
	ObjectTypeDir:       "DIR",
	ObjectTypeTimeBase:  "TIMEBASE",
	ObjectTypeTimeCb:    "TIMECB",
	ObjectTypeModule:    "MODULE",
	ObjectTypeFileSys:   "FILESYS",
	ObjectTypeConsole:   "CONSOLE",
	ObjectTypeRwLock:    "RWLOCK",
	ObjectTypeUser:      "USER",
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ObjectType(%d)", uint16(t))
}

// Two reserved sentinels. No valid id ever equals either of these.
const (
	ObjectIdUndefined ObjectId = 0x00000000
	ObjectIdReserved  ObjectId = 0xFFFFFFFF
)

const (
	slotIndexBits = 7
	slotIndexMask = 1<<slotIndexBits - 1
	generationMax = 1 << (16 - slotIndexBits) // 9 bits of rolling generation
)

// TableCapacity is the fixed number of slots in every per-type table.
// 128 fits in the 7 index bits reserved out of the 16-bit serial.
const TableCapacity = 1 << slotIndexBits

func composeId(objType ObjectType, generation uint16, index int) ObjectId {
	serial := (generation%generationMax)<<slotIndexBits | uint16(index&slotIndexMask)
	return ObjectId(uint32(objType)<<16 | uint32(serial))
}

func decomposeId(id ObjectId) (objType ObjectType, index int) {
	v := uint32(id)
	objType = ObjectType(v >> 16)
	index = int(uint16(v) & slotIndexMask)
	return objType, index
}

// ObjectIdToInteger returns the raw 32-bit value carried by id.
func ObjectIdToInteger(id ObjectId) uint32 { return uint32(id) }

// ObjectIdFromInteger is the inverse of ObjectIdToInteger.
func ObjectIdFromInteger(v uint32) ObjectId { return ObjectId(v) }

// ObjectIdEqual reports whether a and b are the same id.
func ObjectIdEqual(a, b ObjectId) bool { return a == b }

// ObjectIdDefined reports whether id is neither sentinel.
func ObjectIdDefined(id ObjectId) bool {
	return id != ObjectIdUndefined && id != ObjectIdReserved
}

// IdentifyObject returns id's type tag, or ObjectTypeUndefined if id is
// one of the reserved sentinels.
func IdentifyObject(id ObjectId) ObjectType {
	if !ObjectIdDefined(id) {
		return ObjectTypeUndefined
	}
	t, _ := decomposeId(id)
	return t
}

// ConvertToArrayIndex decodes id's slot index without checking that id
// is currently active; callers that need the liveness check should go
// through Table[T].GetByID instead.
func ConvertToArrayIndex(id ObjectId) (int, error) {
	if !ObjectIdDefined(id) {
		return 0, NewError(ErrInvalidId, "id is not defined")
	}
	_, idx := decomposeId(id)
	return idx, nil
}

// ObjectIdToArrayIndex decodes id's slot index after checking that id
// carries the expected type tag.
func ObjectIdToArrayIndex(objType ObjectType, id ObjectId) (int, error) {
	t, idx := decomposeId(id)
	if !ObjectIdDefined(id) || t != objType {
		return 0, NewError(ErrIncorrectObjType, "id does not carry the expected object type")
	}
	return idx, nil
}

// Timeout is the blocking-call timeout vocabulary shared by queues and
// semaphores: Pend waits forever, Check never blocks, and any positive
// value is a count of milliseconds.
type Timeout int32

const (
	Pend  Timeout = -1
	Check Timeout = 0
)
