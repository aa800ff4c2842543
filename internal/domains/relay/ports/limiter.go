package ports

import "time"

// Limiter is the admission counter shared by every in-flight request.
//
// Allow must increment and check atomically: two concurrent calls for the same key
// can never both observe the last free slot.
type Limiter interface {
	Allow(key string) Decision
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the caller's current window ends.
	ResetAt time.Time
}
