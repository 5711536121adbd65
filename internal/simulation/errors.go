package simulation

import (
	"errors"
	"fmt"
)

// ErrTickInProgress is reported when Tick is called while another tick of
// the same simulation, or one of its callbacks, is still running.
var ErrTickInProgress = errors.New("simulation: tick already in progress")

// UnknownNodeError is reported when an operation names a node id that is
// not part of the current data set. The operation is a no-op.
type UnknownNodeError struct {
	Op string
	ID string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("simulation: %s: unknown node %q", e.Op, e.ID)
}

// DuplicateNodeError is reported when SetData receives the same id twice.
// The first occurrence wins.
type DuplicateNodeError struct {
	ID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("simulation: duplicate node %q ignored", e.ID)
}

// NumericError is reported when integration produced non-finite positions
// and the affected nodes were reset near the center.
type NumericError struct {
	Tick  uint64
	Nodes []string
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("simulation: tick %d: reset %d non-finite nodes", e.Tick, len(e.Nodes))
}

// InvalidPositionError is reported when a pin is requested at a NaN or
// infinite coordinate. The pin is not applied.
type InvalidPositionError struct {
	ID   string
	X, Y float64
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("simulation: pin %q: non-finite position (%g, %g)", e.ID, e.X, e.Y)
}
