package gputune

import "time"

// now is the wall-clock source used for iteration timing (the original's
// get_time). Overridable in tests, matching catrate's timeNow convention.
var now = func() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
