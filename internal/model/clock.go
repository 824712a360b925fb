package model

import "time"

// Clock supplies timestamps for optimistic updates. The engine never
// calls time.Now directly so tests can substitute a deterministic clock
// (see internal/testutil).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock. All timestamps are UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
