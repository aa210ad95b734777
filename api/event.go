// Package api defines public API contracts for plugin-mmap.
package api

import "time"

// Op names a lifecycle operation on a mapping.
type Op string

const (
	OpOpen  Op = "open"
	OpClose Op = "close"
)

// Event describes one completed lifecycle operation.
type Event struct {
	Op       Op
	ID       string
	Path     string
	ReadOnly bool
	// Size is the mapped length; zero for failed opens.
	Size     int64
	Start    time.Time
	Duration time.Duration
	// Attempts counts open attempts including retries.
	Attempts int
	Err      error
}

// Result returns "ok" or "error" for use as a metric label.
func (e Event) Result() string {
	if e.Err != nil {
		return "error"
	}
	return "ok"
}

// MappingInfo is a snapshot of one live mapping.
type MappingInfo struct {
	ID       string
	Path     string
	Size     int64
	ReadOnly bool
	Opened   time.Time
}
