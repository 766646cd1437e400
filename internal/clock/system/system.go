// Package system provides a real clock implementation.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Run metadata and run IDs are always
// stamped in UTC so that run directory names sort chronologically across hosts.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
