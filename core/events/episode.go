package events

import "time"

// EpisodeEvent is published when a simulated episode ends. Err is nil on
// success.
type EpisodeEvent struct {
	Episode  string
	Steps    int
	Duration time.Duration
	Err      error
}
