package workflow

import "time"

//Clock supplies current time, abstracted so tests can inject fixed time
type Clock interface {
	Now() time.Time
}

//SystemClock is the wall clock
type SystemClock struct{}

//Now implements Clock
func (SystemClock) Now() time.Time { return time.Now() }
