package capture

import (
	"sync"
	"time"
)

// Slot is where a captured photo is written, e.g. a hidden form field.
type Slot interface {
	Set(value string)
	Value() string
}

// FieldSlot is a named, concurrency-safe Slot.
type FieldSlot struct {
	name string

	mu      sync.RWMutex
	value   string
	updated time.Time
}

// NewFieldSlot returns an empty slot for the form field name.
func NewFieldSlot(name string) *FieldSlot {
	return &FieldSlot{name: name}
}

// Name is the form field name.
func (f *FieldSlot) Name() string { return f.name }

// Set replaces the current value.
func (f *FieldSlot) Set(value string) {
	f.mu.Lock()
	f.value = value
	f.updated = time.Now()
	f.mu.Unlock()
}

// Value returns the current value, empty until the first Set.
func (f *FieldSlot) Value() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// UpdatedAt is the time of the last Set, zero if never set.
func (f *FieldSlot) UpdatedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updated
}
