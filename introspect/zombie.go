package introspect

// RecentDeallocation is the class name and last reason of a recently
// released exception-like object, as surfaced by the zombie tracker.
type RecentDeallocation struct {
	Address          uint64
	Name             string
	Reason           string
	ReferencedObject uint64
	Backtrace        []Frame
}

// RecentDeallocationOracle is the "zombie tracker" spec.md §1 places out of
// scope: it records the class name and last reason of recently-released
// exception-like objects, consulted by the report writer's "process" field.
type RecentDeallocationOracle interface {
	// Lookup returns the most recently released exception-like object, if
	// the oracle's cache has retained one since the last cache resize.
	Lookup() (RecentDeallocation, bool)
}
