// Package tracker derives the active task from task state and announces
// changes to it.
package tracker

import (
	"sync"

	"taskmap/internal/logging"
	"taskmap/internal/notify"
	"taskmap/internal/types"
)

// Change is delivered when the active task's identity changes. Either side
// may be nil.
type Change struct {
	Active   *types.Task
	Previous *types.Task
}

// FindActiveTask returns the first in-progress task, else the first task
// with an in-progress subtask, else nil. When several tasks qualify, list
// order decides.
func FindActiveTask(tasks []types.Task) *types.Task {
	for i := range tasks {
		if tasks[i].InProgress() {
			return cloneTask(&tasks[i])
		}
	}
	for i := range tasks {
		if tasks[i].HasSubtaskInProgress() {
			return cloneTask(&tasks[i])
		}
	}
	return nil
}

// Tracker remembers the active task across updates.
type Tracker struct {
	mu      sync.Mutex
	active  *types.Task
	changes notify.Dispatcher[Change]
}

// New creates a tracker with no active task.
func New() *Tracker {
	return &Tracker{}
}

// UpdateActiveTask recomputes the active task and notifies subscribers
// when its id differs from the previous one. It returns the active task.
func (t *Tracker) UpdateActiveTask(tasks []types.Task) *types.Task {
	next := FindActiveTask(tasks)

	t.mu.Lock()
	prev := t.active
	t.active = next
	changed := id(prev) != id(next)
	t.mu.Unlock()

	if changed {
		logging.Tracker("active task %q -> %q", id(prev), id(next))
		t.changes.Emit(Change{Active: cloneTask(next), Previous: cloneTask(prev)})
	}
	return cloneTask(next)
}

// Active returns the current active task, or nil.
func (t *Tracker) Active() *types.Task {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneTask(t.active)
}

// Subscribe registers fn for active-task changes. Calls arrive in
// registration order and are never re-entrant.
func (t *Tracker) Subscribe(fn func(active, previous *types.Task)) (unsubscribe func()) {
	return t.changes.Subscribe(func(c Change) { fn(c.Active, c.Previous) })
}

func id(t *types.Task) string {
	if t == nil {
		return ""
	}
	return t.ID
}

func cloneTask(t *types.Task) *types.Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Dependencies = append([]string(nil), t.Dependencies...)
	c.Subtasks = append([]types.Subtask(nil), t.Subtasks...)
	return &c
}
