package osal

// ForEachObject implements spec.md §6's for_each_object: invokes fn
// once per active id across every registered table, optionally
// restricted to ids whose CreatorId equals creatorFilter (pass
// ObjectIdUndefined for no filter).
func ForEachObject(creatorFilter ObjectId, fn func(ObjectId)) {
	for _, t := range snapshotRegistry() {
		t.iterateIds(creatorFilter, fn)
	}
}

// ForEachObjectOfType implements spec.md §6's for_each_object_of_type:
// like ForEachObject but restricted to a single ObjectType. It is a
// no-op if no table has been created for objType yet.
func ForEachObjectOfType(objType ObjectType, creatorFilter ObjectId, fn func(ObjectId)) {
	tables := snapshotRegistry()
	if t, ok := tables[objType]; ok {
		t.iterateIds(creatorFilter, fn)
	}
}

// GetResourceName copies the resource's interned name, if any. Returns
// ErrInvalidId if id isn't currently active in any registered table.
func GetResourceName(id ObjectId) (string, error) {
	objType := IdentifyObject(id)
	if objType == ObjectTypeUndefined {
		return "", NewError(ErrInvalidId, "id is not defined")
	}
	tables := snapshotRegistry()
	t, ok := tables[objType]
	if !ok {
		return "", NewError(ErrInvalidId, "no table for object type")
	}
	rt, ok := t.(recordLookup)
	if !ok {
		return "", NewError(ErrInvalidId, "table does not support name lookup")
	}
	name, found := rt.lookupName(id)
	if !found {
		return "", NewError(ErrInvalidId, "id is not active")
	}
	return name, nil
}

// recordLookup is implemented by Table[T] to support GetResourceName
// without exposing the typed payload to the root package's free
// functions.
type recordLookup interface {
	lookupName(id ObjectId) (string, bool)
}

func (t *Table[T]) lookupName(id ObjectId) (string, bool) {
	objType, idx := decomposeId(id)
	if objType != t.objType || idx < 0 || idx >= t.capacity {
		return "", false
	}
	rec := t.recordOf(idx)
	if rec.ActiveId != id {
		return "", false
	}
	return rec.Name, true
}
