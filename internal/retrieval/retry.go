package retrieval

import "github.com/ziadkadry99/twinpilot/internal/turn"

// RetryPolicy bounds the orchestrator's second-pass retrieval. The pipeline
// consults it after the answerability evaluator has seen the first pass;
// with MaxAttempts 1 the expanded-query retry can fire at most once per
// turn, and there is no backoff.
type RetryPolicy struct {
	MaxAttempts int
	FloorChunks int
}

// DefaultRetryPolicy returns the stock single-retry policy.
func DefaultRetryPolicy(floor int) RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, FloorChunks: floor}
}

// ShouldRetry reports whether another retrieval pass is allowed given how
// many retries already ran, how many chunks the last pass produced, and what
// the evaluator concluded. Both conditions of the trigger predicate must
// hold: a thin result set alone is fine if the evaluator found it usable.
func (p RetryPolicy) ShouldRetry(attempted int, chunkCount int, state turn.Answerability) bool {
	if attempted >= p.MaxAttempts {
		return false
	}
	return chunkCount < p.FloorChunks && state == turn.Insufficient
}
