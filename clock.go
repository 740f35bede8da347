package hoard

import "time"

// Clock supplies the time used for entry creation, access tracking, and
// expiry checks. The default implementation uses time.Now(). Injecting a
// fake clock makes expiry behavior deterministic in tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
