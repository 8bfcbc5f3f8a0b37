package presentation

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"mpbar/internal/progress"
)

// DefaultPlainInterval is how often plain mode repeats a line for a running task.
const DefaultPlainInterval = time.Minute

const plainBarWidth = 40

// Plain writes one line per notable report. It is meant for pipes and log files.
//
//	 42.00% ::::::::::::::::                         |      420 /    1,000 |:  fetch
type Plain struct {
	w        io.Writer
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	printed map[string]time.Time
}

// NewPlain creates a plain renderer. A zero interval means DefaultPlainInterval.
func NewPlain(w io.Writer, interval time.Duration) *Plain {
	if interval <= 0 {
		interval = DefaultPlainInterval
	}
	return &Plain{
		w:        w,
		interval: interval,
		now:      time.Now,
		printed:  map[string]time.Time{},
	}
}

func (p *Plain) Start() error { return nil }

func (p *Plain) Present(r progress.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	last, seen := p.printed[r.TaskID]
	switch {
	case r.Last:
		delete(p.printed, r.TaskID)
	case !seen || now.Sub(last) >= p.interval:
		p.printed[r.TaskID] = now
	default:
		return
	}
	fmt.Fprintln(p.w, formatLine(r))
}

func (p *Plain) Stop() {}

func formatLine(r progress.Report) string {
	pct := r.Percent()
	bar := strings.Repeat(" ", plainBarWidth)
	pctStr := "     ?%"
	if pct >= 0 {
		filled := int(float64(plainBarWidth) * pct / 100)
		bar = strings.Repeat(":", filled) + strings.Repeat(" ", plainBarWidth-filled)
		pctStr = fmt.Sprintf("%6.2f%%", pct)
	}
	total := "?"
	if r.Total > 0 {
		total = humanize.Comma(int64(r.Total))
	}
	return fmt.Sprintf("%s %s | %8s / %8s |:  %s",
		pctStr, bar, humanize.Comma(int64(r.Done)), total, r.Name)
}
