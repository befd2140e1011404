package runner

// budgetController adapts the per-transaction instruction budget to
// what the chain actually sustains. Consecutive confirmed transactions
// push the budget up in 10% steps; a budget-exceeded failure pulls it
// down 20% and restarts the success streak. The budget never leaves
// [min, max].
type budgetController struct {
	current uint64
	min     uint64
	max     uint64

	// streak counts confirmed transactions since the last raise or cut.
	streak int
}

// successesPerRaise is how many consecutive confirmations earn a raise.
const successesPerRaise = 10

func newBudgetController(start, min, max uint64) *budgetController {
	if min == 0 {
		min = 1
	}
	if max < min {
		max = min
	}
	if start < min {
		start = min
	}
	if start > max {
		start = max
	}
	return &budgetController{current: start, min: min, max: max}
}

// Budget returns the instruction budget for the next transaction.
func (b *budgetController) Budget() uint64 { return b.current }

// OnSuccess records a confirmed transaction. Every tenth consecutive
// success raises the budget 10%, capped at max.
func (b *budgetController) OnSuccess() {
	b.streak++
	if b.streak < successesPerRaise {
		return
	}
	b.streak = 0
	raised := b.current + b.current/10
	if raised > b.max {
		raised = b.max
	}
	b.current = raised
}

// OnBudgetExceeded records a compute-budget failure. The budget drops
// 20%, floored at min, and the success streak resets.
func (b *budgetController) OnBudgetExceeded() {
	b.streak = 0
	lowered := b.current - b.current/5
	if lowered < b.min {
		lowered = b.min
	}
	b.current = lowered
}
