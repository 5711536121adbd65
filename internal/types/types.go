// Package types defines the data shared between the layout components:
// the task records consumed from the task store and the simulation-side
// node and link mirrors built from them.
package types

import "strings"

// TaskStatus is the lifecycle state reported by the task store.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusDone       TaskStatus = "done"
	StatusReview     TaskStatus = "review"
	StatusDeferred   TaskStatus = "deferred"
	StatusCancelled  TaskStatus = "cancelled"
	StatusBlocked    TaskStatus = "blocked"
)

// NormalizeStatus folds the spellings different stores use ("in_progress",
// "In Progress") onto the canonical constants.
func NormalizeStatus(s string) TaskStatus {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("_", "-", " ", "-").Replace(v)
	return TaskStatus(v)
}

// TaskPriority is the coarse priority label attached to a task.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// Weight maps a priority label onto the numeric weight used by the physics
// model. Unknown or empty labels are treated as medium.
func (p TaskPriority) Weight() float64 {
	switch TaskPriority(strings.ToLower(string(p))) {
	case PriorityHigh:
		return 3
	case PriorityLow:
		return 1
	default:
		return 2
	}
}

// IsHigh reports whether the priority earns extra spacing.
func (p TaskPriority) IsHigh() bool {
	return TaskPriority(strings.ToLower(string(p))) == PriorityHigh
}

// Subtask is the part of a subtask record the layout reads.
type Subtask struct {
	ID     string     `json:"id,omitempty" yaml:"id,omitempty"`
	Title  string     `json:"title,omitempty" yaml:"title,omitempty"`
	Status TaskStatus `json:"status" yaml:"status"`
}

// Task is a work item as delivered by the task store. Values are treated as
// immutable for the duration of a call.
type Task struct {
	ID           string       `json:"id" yaml:"id"`
	Title        string       `json:"title,omitempty" yaml:"title,omitempty"`
	Status       TaskStatus   `json:"status" yaml:"status"`
	Priority     TaskPriority `json:"priority,omitempty" yaml:"priority,omitempty"`
	Dependencies []string     `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Subtasks     []Subtask    `json:"subtasks,omitempty" yaml:"subtasks,omitempty"`
	Cluster      string       `json:"cluster,omitempty" yaml:"cluster,omitempty"`
}

// InProgress reports whether the task itself is being worked on.
func (t Task) InProgress() bool {
	return NormalizeStatus(string(t.Status)) == StatusInProgress
}

// HasSubtaskInProgress reports whether any subtask is being worked on.
func (t Task) HasSubtaskInProgress() bool {
	for _, st := range t.Subtasks {
		if NormalizeStatus(string(st.Status)) == StatusInProgress {
			return true
		}
	}
	return false
}

// Point is a 2D world-space coordinate.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// PhysicsNode is the simulation-side mirror of a task.
type PhysicsNode struct {
	ID       string   `json:"id"`
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	VX       float64  `json:"vx"`
	VY       float64  `json:"vy"`
	FX       *float64 `json:"fx,omitempty"`
	FY       *float64 `json:"fy,omitempty"`
	Priority float64  `json:"priority"`
	High     bool     `json:"high,omitempty"`
	Cluster  string   `json:"cluster,omitempty"`
	Active   bool     `json:"active,omitempty"`

	// Radius is the effective collision radius computed by smart spacing.
	Radius float64 `json:"radius"`
}

// Pinned reports whether the node has a fixed position.
func (n *PhysicsNode) Pinned() bool {
	return n.FX != nil && n.FY != nil
}

// Pin fixes the node at (x, y) and zeroes its velocity.
func (n *PhysicsNode) Pin(x, y float64) {
	fx, fy := x, y
	n.FX, n.FY = &fx, &fy
	n.X, n.Y = x, y
	n.VX, n.VY = 0, 0
}

// Unpin releases a fixed position.
func (n *PhysicsNode) Unpin() {
	n.FX, n.FY = nil, nil
}

// Clone returns a deep copy safe to hand to readers.
func (n PhysicsNode) Clone() PhysicsNode {
	c := n
	if n.FX != nil {
		fx := *n.FX
		c.FX = &fx
	}
	if n.FY != nil {
		fy := *n.FY
		c.FY = &fy
	}
	return c
}

// PhysicsLink is one dependency edge: Source is the prerequisite, Target the
// dependent task.
type PhysicsLink struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
	Distance float64 `json:"distance"`
}

// LinksFromTasks derives one link per dependency edge whose endpoints are
// both present. Dangling dependency ids are returned separately.
func LinksFromTasks(tasks []Task) (links []PhysicsLink, dangling []string) {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	seen := make(map[[2]string]bool)
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if !known[dep] {
				dangling = append(dangling, dep)
				continue
			}
			if dep == t.ID {
				continue
			}
			key := [2]string{dep, t.ID}
			if seen[key] {
				continue
			}
			seen[key] = true
			links = append(links, PhysicsLink{Source: dep, Target: t.ID})
		}
	}
	return links, dangling
}

// NodesFromTasks builds fresh nodes (no positions) for the given tasks.
func NodesFromTasks(tasks []Task) []PhysicsNode {
	nodes := make([]PhysicsNode, 0, len(tasks))
	for _, t := range tasks {
		nodes = append(nodes, PhysicsNode{
			ID:       t.ID,
			Priority: t.Priority.Weight(),
			High:     t.Priority.IsHigh(),
			Cluster:  t.Cluster,
		})
	}
	return nodes
}
