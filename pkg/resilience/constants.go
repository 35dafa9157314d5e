package resilience

import "time"

// Breaker defaults for collaborators called on the request path
const (
	DefaultMaxRequests           uint32        = 1
	DefaultInterval              time.Duration = 30 * time.Second
	DefaultTimeout               time.Duration = 15 * time.Second
	DefaultFailureThreshold      uint32        = 5
	DefaultFailureRatioThreshold float64       = 0.6
	DefaultMinRequestsToTrip     uint32        = 20
)

// Retry defaults. A full retry cycle stays under the HTTP write timeout.
const (
	DefaultRetryMaxAttempts   int           = 3
	DefaultRetryInitialDelay  time.Duration = 50 * time.Millisecond
	DefaultRetryMaxDelay      time.Duration = time.Second
	DefaultRetryBackoffFactor float64       = 2.0
)
