package models

import "time"

// IndexRun is a recorded indexing run.
type IndexRun struct {
	ID        string        `json:"id"`
	Source    string        `json:"source"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Total     int           `json:"total"`
	Indexed   int           `json:"indexed"`
	Failed    int           `json:"failed"`
	// Failures is only populated when a single run is fetched.
	Failures []RunFailure `json:"failures,omitempty"`
}

// RunFailure is one item that failed during a run.
type RunFailure struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
}
