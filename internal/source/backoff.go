// Package source provides imagery source implementations for the tile layer
// adapter: URL-template (XYZ) sources and WMTS sources discovered from a
// capabilities document.
package source

import "time"

// RetryStrategy defines the backoff intervals for tile fetch retries.
type RetryStrategy struct {
	Intervals  []time.Duration
	MaxRetries int
}

// DefaultRetryStrategy returns the default tile retry backoff.
func DefaultRetryStrategy() *RetryStrategy {
	return &RetryStrategy{
		Intervals: []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
		},
		MaxRetries: 3,
	}
}

// Wait returns the backoff before the given attempt (1-based) and whether a
// retry is still allowed. Attempts beyond the interval table reuse the last
// interval until MaxRetries is reached.
func (s *RetryStrategy) Wait(attempt int) (time.Duration, bool) {
	if s == nil || attempt < 1 || attempt > s.MaxRetries || len(s.Intervals) == 0 {
		return 0, false
	}
	idx := attempt - 1
	if idx >= len(s.Intervals) {
		idx = len(s.Intervals) - 1
	}
	return s.Intervals[idx], true
}
