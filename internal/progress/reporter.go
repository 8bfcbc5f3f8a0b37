package progress

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// DefaultInterval is the minimum gap between two forwarded reports of the same task.
const DefaultInterval = 100 * time.Millisecond

// Reporter stamps reports with their origin and forwards them onto a Channel.
//
// Intermediate reports of a task are throttled to one per interval; the
// first and last report of a task are always forwarded. A nil *Reporter is
// valid and discards everything, which is what a disabled machine hands out.
type Reporter struct {
	ch       Channel
	interval time.Duration
	log      logr.Logger
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time // task id -> time of last forwarded report
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithLogger sets the logger used for dropped or failed reports.
func WithLogger(log logr.Logger) ReporterOption {
	return func(r *Reporter) {
		r.log = log
	}
}

// WithInterval overrides DefaultInterval. Zero disables throttling.
func WithInterval(d time.Duration) ReporterOption {
	return func(r *Reporter) {
		r.interval = d
	}
}

// NewReporter creates a Reporter writing to ch.
func NewReporter(ch Channel, opts ...ReporterOption) *Reporter {
	r := &Reporter{
		ch:       ch,
		interval: DefaultInterval,
		log:      logr.Discard(),
		now:      time.Now,
		last:     map[string]time.Time{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Channel returns the channel the reporter writes to.
func (r *Reporter) Channel() Channel {
	if r == nil {
		return nil
	}
	return r.ch
}

// Report forwards rep unless it is throttled. The origin is taken from ctx.
// Errors from the underlying channel are returned unchanged.
func (r *Reporter) Report(ctx context.Context, rep Report) error {
	if r == nil {
		return nil
	}
	now := r.now()
	rep.Origin = OriginFrom(ctx)
	if rep.Time.IsZero() {
		rep.Time = now
	}
	if rep.Total > 0 && rep.Done >= rep.Total {
		rep.Last = true
	}

	if !r.admit(rep, now) {
		return nil
	}

	if err := r.ch.Put(rep); err != nil {
		r.log.Error(err, "failed to put report", "task", rep.TaskID, "name", rep.Name)
		return err
	}
	r.log.V(3).Info("report", "task", rep.TaskID, "done", rep.Done, "total", rep.Total, "main", rep.Origin.Main())
	return nil
}

func (r *Reporter) admit(rep Report, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, seen := r.last[rep.TaskID]
	if rep.Last {
		delete(r.last, rep.TaskID)
		return true
	}
	if rep.First || !seen || now.Sub(prev) >= r.interval {
		r.last[rep.TaskID] = now
		return true
	}
	return false
}
