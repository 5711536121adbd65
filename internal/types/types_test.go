package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want TaskStatus
	}{
		{"in-progress", StatusInProgress},
		{"in_progress", StatusInProgress},
		{"In Progress", StatusInProgress},
		{" DONE ", StatusDone},
		{"pending", StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeStatus(tt.in))
		})
	}
}

func TestPriorityWeight(t *testing.T) {
	assert.Equal(t, 3.0, PriorityHigh.Weight())
	assert.Equal(t, 2.0, PriorityMedium.Weight())
	assert.Equal(t, 1.0, PriorityLow.Weight())
	assert.Equal(t, 2.0, TaskPriority("").Weight())
	assert.True(t, TaskPriority("HIGH").IsHigh())
	assert.False(t, PriorityLow.IsHigh())
}

func TestTaskProgress(t *testing.T) {
	task := Task{ID: "1", Status: "in_progress"}
	assert.True(t, task.InProgress())
	assert.False(t, task.HasSubtaskInProgress())

	task = Task{ID: "2", Status: StatusPending, Subtasks: []Subtask{
		{ID: "2.1", Status: StatusDone},
		{ID: "2.2", Status: "In Progress"},
	}}
	assert.False(t, task.InProgress())
	assert.True(t, task.HasSubtaskInProgress())
}

func TestPinAndClone(t *testing.T) {
	n := PhysicsNode{ID: "a", X: 1, Y: 2, VX: 3, VY: 4}
	assert.False(t, n.Pinned())

	n.Pin(10, 20)
	require.True(t, n.Pinned())
	assert.Equal(t, 10.0, n.X)
	assert.Equal(t, 0.0, n.VX)

	c := n.Clone()
	*c.FX = 99
	assert.Equal(t, 10.0, *n.FX, "clone must not share pin storage")

	n.Unpin()
	assert.False(t, n.Pinned())
	assert.True(t, c.Pinned())
}

func TestLinksFromTasks(t *testing.T) {
	tasks := []Task{
		{ID: "A"},
		{ID: "B", Dependencies: []string{"A", "A", "B"}},
		{ID: "C", Dependencies: []string{"B", "missing"}},
	}
	links, dangling := LinksFromTasks(tasks)

	assert.Equal(t, []PhysicsLink{
		{Source: "A", Target: "B"},
		{Source: "B", Target: "C"},
	}, links)
	assert.Equal(t, []string{"missing"}, dangling)
}

func TestNodesFromTasks(t *testing.T) {
	nodes := NodesFromTasks([]Task{
		{ID: "A", Priority: PriorityHigh, Cluster: "ui"},
		{ID: "B"},
	})
	require.Len(t, nodes, 2)
	assert.True(t, nodes[0].High)
	assert.Equal(t, "ui", nodes[0].Cluster)
	assert.Equal(t, 2.0, nodes[1].Priority)
	assert.False(t, nodes[1].Pinned())
}
