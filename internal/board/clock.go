package board

import (
	"time"

	"cloud.google.com/go/civil"
)

// Clock supplies the current instant and the calendar date boards are
// evaluated against.
type Clock interface {
	Now() time.Time
	Today() civil.Date
}

type zoneClock struct {
	loc *time.Location
}

// NewClock returns a clock reading wall time in loc (UTC when nil)
func NewClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return zoneClock{loc: loc}
}

func (c zoneClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c zoneClock) Today() civil.Date {
	return civil.DateOf(c.Now())
}

// FixedClock is a Clock frozen at one instant
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time    { return c.At }
func (c FixedClock) Today() civil.Date { return civil.DateOf(c.At) }
