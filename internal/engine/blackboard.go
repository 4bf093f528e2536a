package engine

import (
	"sort"
	"sync"
)

// slotState tracks one concept slot through the run.
type slotState int

const (
	slotPending slotState = iota
	slotCommitted
	slotFailed
)

// Blackboard holds the committed concept values of a run. Commits are atomic
// per concept slot; the engine is the only writer.
type Blackboard struct {
	mu    sync.RWMutex
	slots map[string]*slot
}

type slot struct {
	value   any
	state   slotState
	failure string
}

// NewBlackboard creates an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{slots: make(map[string]*slot)}
}

// Commit writes a concept value. Committing over an existing value replaces
// it; the caller enforces the single-producer rule.
func (b *Blackboard) Commit(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[name] = &slot{value: value, state: slotCommitted}
}

// Fail marks a concept slot failed. Dependents of a failed slot never become
// selectable.
func (b *Blackboard) Fail(name, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots[name] = &slot{state: slotFailed, failure: reason}
}

// Uncommit clears a slot. Used by the looping operator between iterations.
func (b *Blackboard) Uncommit(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.slots, name)
}

// Get returns the committed value of a concept.
func (b *Blackboard) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.slots[name]
	if !ok || s.state != slotCommitted {
		return nil, false
	}
	return s.value, true
}

// IsCommitted reports whether a concept has a committed value.
func (b *Blackboard) IsCommitted(name string) bool {
	_, ok := b.Get(name)
	return ok
}

// IsFailed reports whether a concept slot is failed.
func (b *Blackboard) IsFailed(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.slots[name]
	return ok && s.state == slotFailed
}

// Failure returns the failure reason of a failed slot.
func (b *Blackboard) Failure(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if s, ok := b.slots[name]; ok {
		return s.failure
	}
	return ""
}

// Snapshot returns the committed values, for checkpointing.
func (b *Blackboard) Snapshot() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]any, len(b.slots))
	for name, s := range b.slots {
		if s.state == slotCommitted {
			out[name] = s.value
		}
	}
	return out
}

// FailedNames returns the failed slot names, sorted.
func (b *Blackboard) FailedNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var names []string
	for name, s := range b.slots {
		if s.state == slotFailed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Restore replaces the blackboard contents from a checkpoint snapshot.
func (b *Blackboard) Restore(committed map[string]any, failed []string, failures map[string]string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slots = make(map[string]*slot, len(committed)+len(failed))
	for name, value := range committed {
		b.slots[name] = &slot{value: value, state: slotCommitted}
	}
	for _, name := range failed {
		b.slots[name] = &slot{state: slotFailed, failure: failures[name]}
	}
}
