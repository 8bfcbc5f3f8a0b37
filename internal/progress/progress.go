// Package progress defines the progress reports exchanged between work units
// and the pickup, the channel they travel on, and the Reporter that emits them.
package progress

import (
	"context"
	"time"
)

// Report conveys the progress of one task (one loop) at a point in time.
// Done counts completed iterations out of Total; Total may be 0 if unknown.
type Report struct {
	TaskID string    `json:"task_id"`
	Name   string    `json:"name"`
	Done   int       `json:"done"`
	Total  int       `json:"total"`
	First  bool      `json:"first,omitempty"`
	Last   bool      `json:"last,omitempty"`
	Origin Origin    `json:"origin"`
	Time   time.Time `json:"time"`

	sentinel bool
}

// Percent returns completion in 0..100, or -1 when Total is unknown.
func (r Report) Percent() float64 {
	if r.Total <= 0 {
		return -1
	}
	p := float64(r.Done) / float64(r.Total) * 100
	if p > 100 {
		p = 100
	}
	return p
}

// IsSentinel reports whether r is the stop order for a pickup.
func (r Report) IsSentinel() bool {
	return r.sentinel
}

// Sentinel returns the value put on a Channel to make its pickup exit.
func Sentinel() Report {
	return Report{sentinel: true}
}

// Channel carries reports from any number of writers to a single reader.
type Channel interface {
	// Put enqueues r. It must be safe for concurrent use.
	Put(r Report) error
	// Get blocks until a report is available or ctx is done.
	Get(ctx context.Context) (Report, error)
}
