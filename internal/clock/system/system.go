// Package system provides the wall clock used to stamp run results.
package system

import "time"

// Clock implements crawler.Clock. Readings are truncated to whole seconds
// in the configured location (local time when nil).
type Clock struct {
	Location *time.Location
}

// New returns a local-time Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (c Clock) Now() time.Time {
	now := time.Now().Truncate(time.Second)
	if c.Location != nil {
		return now.In(c.Location)
	}
	return now
}
