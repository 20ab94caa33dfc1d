package service

// CircuitBreaker halts a run after a number of consecutive failures, to
// avoid burning calls against an exhausted or broken dependency. A run of
// failures usually means the LLM quota is gone, not that one file is bad.
//
// A breaker belongs to a single run and is not safe for concurrent use.
type CircuitBreaker struct {
	threshold   int
	consecutive int
}

// NewCircuitBreaker creates a breaker that trips after threshold
// consecutive failures.
func NewCircuitBreaker(threshold int) *CircuitBreaker {
	return &CircuitBreaker{threshold: threshold}
}

// Failure records a failed attempt.
func (b *CircuitBreaker) Failure() {
	b.consecutive++
}

// Success resets the consecutive-failure count.
func (b *CircuitBreaker) Success() {
	b.consecutive = 0
}

// Tripped reports whether the breaker has reached its threshold.
func (b *CircuitBreaker) Tripped() bool {
	return b.consecutive >= b.threshold
}

// Reset clears the breaker for reuse in a new run.
func (b *CircuitBreaker) Reset() {
	b.consecutive = 0
}
