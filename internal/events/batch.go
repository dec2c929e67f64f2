package events

import "time"

// BatchStart is emitted when a request's deferred operations start running.
type BatchStart struct {
	Mode       string
	Operations int
}

// BatchFinish is emitted once every deferred operation has completed or the
// batch stopped on the first failure.
type BatchFinish struct {
	Mode       string
	Operations int
	Err        error
	Duration   time.Duration
}
