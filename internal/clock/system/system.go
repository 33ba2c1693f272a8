// Package system provides the clocks that date digest runs.
package system

import (
	"fmt"
	"time"
)

// DateLayout is the run date format used in artifact names.
const DateLayout = "2006-01-02"

// Clock implements digest.Clock. The zero value reads the wall clock in UTC.
type Clock struct {
	pinned time.Time
}

// New returns a wall clock.
func New() *Clock {
	return &Clock{}
}

// At returns a clock that always reports t, in UTC. It is used to replay a
// run for an earlier date.
func At(t time.Time) *Clock {
	return &Clock{pinned: t.UTC()}
}

// ParseRunDate pins a clock to midnight UTC of a YYYY-MM-DD date.
func ParseRunDate(date string) (*Clock, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("parse run date %q: %w", date, err)
	}
	return At(t), nil
}

// Now returns the pinned time, or the current UTC time.
func (c *Clock) Now() time.Time {
	if c != nil && !c.pinned.IsZero() {
		return c.pinned
	}
	return time.Now().UTC()
}

// Pinned reports whether the clock replays a fixed instant.
func (c *Clock) Pinned() bool {
	return c != nil && !c.pinned.IsZero()
}
