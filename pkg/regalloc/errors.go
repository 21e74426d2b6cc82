package regalloc

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRegisters indicates coloring failed and no value could be spilled
	ErrOutOfRegisters = errors.New("out of registers")
	// ErrIterationLimit indicates the caller's spill iteration cap was exceeded
	ErrIterationLimit = errors.New("spill iteration limit reached")
	// ErrBadOperand indicates an operand the register file cannot hold
	ErrBadOperand = errors.New("bad operand")
)

// AllocationError is the fatal outcome of an allocation. It carries the node
// that could not be colored and the spill cost table of the last attempt.
type AllocationError struct {
	Err       error
	Shader    string
	Witness   int
	Iteration int
	Costs     []SpillCost
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("%s: %v (v%d could not be colored after %d spills)",
		e.Shader, e.Err, e.Witness, e.Iteration)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
