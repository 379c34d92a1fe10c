package timefmt

import "time"

// Clock provides the current time. Formatting depends on "now", so callers
// inject a Clock instead of reading the wall clock directly.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.T
}

// FixedUnix returns a FixedClock pinned to the given Unix timestamp.
func FixedUnix(sec int64) FixedClock {
	return FixedClock{T: time.Unix(sec, 0)}
}

// CurrentTimestamp returns the clock's current time truncated to whole seconds.
func CurrentTimestamp(c Clock) int64 {
	return c.Now().Unix()
}

// FutureTimestamp returns the Unix timestamp the given number of seconds after now.
func FutureTimestamp(c Clock, seconds int64) int64 {
	return CurrentTimestamp(c) + seconds
}
