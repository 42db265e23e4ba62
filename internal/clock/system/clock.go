// Package system provides the wall clock used outside of tests.
package system

import "time"

// Clock implements scrape.Clock with time.Now.
type Clock struct{}

// New returns the system clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}
