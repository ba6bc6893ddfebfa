// Package scheduler keeps an explicit table of pending deferred tasks,
// keyed by caller-chosen strings, replacing ambient timer state so that
// pending work can be cancelled and inspected. Tasks live only in
// process memory; nothing survives a restart.
package scheduler

import (
	"sync"
	"time"

	"github.com/spec-kit/guild-warden/pkg/clock"
)

// Table schedules at most one pending task per key.
type Table struct {
	clk    clock.Clock
	mu     sync.Mutex
	timers map[string]*entry
}

type entry struct {
	timer clock.Timer
}

// NewTable builds an empty task table on the given clock.
func NewTable(clk clock.Clock) *Table {
	return &Table{clk: clk, timers: make(map[string]*entry)}
}

// Schedule registers fn to run after delay. A pending task under the
// same key is cancelled and replaced. The task removes itself from the
// table before running, so fn may schedule under the same key again.
func (t *Table) Schedule(key string, delay time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.timers[key]; ok {
		existing.timer.Stop()
	}

	e := &entry{}
	e.timer = t.clk.AfterFunc(delay, func() {
		t.mu.Lock()
		// A concurrent Schedule may have replaced this entry; only
		// the current occupant removes the key.
		if current, ok := t.timers[key]; ok && current == e {
			delete(t.timers, key)
		}
		t.mu.Unlock()
		fn()
	})
	t.timers[key] = e
}

// Cancel stops and removes the pending task for key. It reports whether
// a task was pending.
func (t *Table) Cancel(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.timers[key]
	if !ok {
		return false
	}
	delete(t.timers, key)
	return e.timer.Stop()
}

// Pending reports whether a task is scheduled under key.
func (t *Table) Pending(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[key]
	return ok
}

// Len returns the number of scheduled tasks.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
