package model

import "time"

// Frontier is a snapshot of the highest repository ID known to be allocated
// on GitHub. It goes stale as GitHub allocates new IDs, so callers refresh it
// periodically and keep the timestamp to judge its age.
type Frontier struct {
	ID        int64     `json:"id"`
	Seed      int64     `json:"seed"`
	Timestamp time.Time `json:"timestamp"`
}

// Age returns how old the snapshot is relative to now.
func (f *Frontier) Age(now time.Time) time.Duration {
	return now.Sub(f.Timestamp)
}
