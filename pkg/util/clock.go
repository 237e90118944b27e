package util

import "time"

// Clock abstracts time for the matching path so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
