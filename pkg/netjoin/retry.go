package netjoin

import "sync"

// RetryBudget counts connect retries against a fixed maximum.
type RetryBudget struct {
	mu sync.Mutex

	max      int
	attempts int
}

// NewRetryBudget creates a budget allowing max retries. Negative values
// are treated as zero.
func NewRetryBudget(max int) *RetryBudget {
	if max < 0 {
		max = 0
	}
	return &RetryBudget{max: max}
}

// Next consumes one retry. It returns false, leaving the count unchanged,
// when the budget is exhausted.
func (b *RetryBudget) Next() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attempts >= b.max {
		return false
	}
	b.attempts++
	return true
}

// Reset sets the retry count back to zero.
// Call this after a successful join.
func (b *RetryBudget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts = 0
}

// Attempts returns the number of retries consumed since the last reset.
func (b *RetryBudget) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Remaining returns how many retries are left.
func (b *RetryBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max - b.attempts
}

// Max returns the configured maximum.
func (b *RetryBudget) Max() int {
	return b.max
}
