package domain

import "time"

// ModuleState is the supervisor state of one module.
type ModuleState int

const (
	ModuleIdle ModuleState = iota
	ModuleFetching
	ModuleApplying
	ModuleFailed
)

// String returns a human-readable representation of the state.
func (s ModuleState) String() string {
	switch s {
	case ModuleIdle:
		return "Idle"
	case ModuleFetching:
		return "Fetching"
	case ModuleApplying:
		return "Applying"
	case ModuleFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Snapshot is what a renderer sees of one module: the visible slice and
// metadata, never the full buffer.
type Snapshot struct {
	ModuleID string
	Name     string
	Kind     Kind
	Position Position
	Index    int
	Header   string

	Visible []Item
	// Cursor is the rotation cursor the visible slice starts at.
	Cursor int
	// Total is the number of items in the buffer.
	Total int

	State         ModuleState
	LastFetchedAt time.Time
	// Error is set only when the module is configured to surface errors.
	Error *FetchError
	// Loaded is false until the first fetch result arrived.
	Loaded bool
}

// Empty reports whether the module has nothing to show.
func (s Snapshot) Empty() bool {
	return len(s.Visible) == 0
}

// Update is delivered to subscribers whenever a module's rendered state changes.
type Update struct {
	ModuleID string
	Snapshot Snapshot
}

// Region is one screen position with its modules in stacking order.
type Region struct {
	Position Position
	Modules  []Snapshot
}
