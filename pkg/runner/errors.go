package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingClient is returned when the driver has no RPC client.
	ErrMissingClient = errors.New("runner: rpc client not configured")

	// ErrMissingAuthority is returned when no authority keypair is set.
	ErrMissingAuthority = errors.New("runner: authority keypair not configured")

	// ErrNoSegments is returned when the segment list is empty.
	ErrNoSegments = errors.New("runner: no segments configured")
)

// IncompleteRunError reports a run that consumed its transaction
// ceiling without the VM halting. The run can be resumed.
type IncompleteRunError struct {
	// Transactions is how many execute transactions were confirmed.
	Transactions int
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("run incomplete: vm not halted after %d transactions", e.Transactions)
}

// BudgetFloorError reports a step that kept exceeding the compute
// budget even at the configured floor. Lowering the budget further is
// impossible, so retrying cannot succeed.
type BudgetFloorError struct {
	// Floor is the budget the failing submissions ran with.
	Floor uint64

	// Failures is how many consecutive submissions failed at the floor.
	Failures int

	// Last is the final budget-exceeded error.
	Last error
}

func (e *BudgetFloorError) Error() string {
	return fmt.Sprintf("run failed: budget exceeded %d times at the floor of %d instructions: %v",
		e.Failures, e.Floor, e.Last)
}

func (e *BudgetFloorError) Unwrap() error { return e.Last }

// RetriesExhaustedError reports a step that kept failing transiently
// until the attempt ceiling.
type RetriesExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("run failed: %d transient failures: %v", e.Attempts, e.Last)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Last }
