package osal

// ResourceStats is one type's (used, total) tuple, as returned by
// GetResourceStats. See spec.md §4.11/§6.
type ResourceStats struct {
	Used  int
	Total int
}

// GetResourceStats implements spec.md §6's get_resource_stats: a
// snapshot of every registered table's (used, total), taken one table
// at a time (no cross-table lock is ever held, per spec.md §4.2/§5).
func GetResourceStats() map[ObjectType]ResourceStats {
	tables := snapshotRegistry()
	out := make(map[ObjectType]ResourceStats, len(tables))
	for objType, t := range tables {
		out[objType] = ResourceStats{Used: t.Used(), Total: t.Capacity()}
	}
	return out
}
