package accessory

import (
	"sync/atomic"
	"time"
)

// State is the last observed device state. Values are snapshots; a State
// is never mutated after it has been stored.
type State struct {
	PowerOn       bool      `json:"power_on"`
	VolumePercent int       `json:"volume_percent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CachedState holds the latest State. It has one writer (the Reconciler) and
// any number of lock-free readers.
type CachedState struct {
	v atomic.Pointer[State]
}

// NewCachedState creates a cache holding initial.
func NewCachedState(initial State) *CachedState {
	c := &CachedState{}
	c.v.Store(&initial)
	return c
}

// Load returns the current snapshot.
func (c *CachedState) Load() State {
	if s := c.v.Load(); s != nil {
		return *s
	}
	return State{}
}

// store replaces the snapshot.
func (c *CachedState) store(s State) {
	c.v.Store(&s)
}
