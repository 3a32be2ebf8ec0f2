package replay

import "time"

// Clock is the injected time source for replayed operations: the driver sets
// it to each record's timestamp before applying, so league windows elapse in
// record time rather than wall time.
type Clock struct {
	current time.Time
}

// Now returns the current replay time, falling back to wall time before the
// first record is applied.
func (c *Clock) Now() time.Time {
	if c.current.IsZero() {
		return time.Now().UTC()
	}
	return c.current
}

// Set advances the replay time.
func (c *Clock) Set(t time.Time) {
	c.current = t
}
