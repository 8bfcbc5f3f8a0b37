// Package pickup drains a progress channel in the background and hands each
// report to a presentation.
package pickup

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"mpbar/internal/presentation"
	"mpbar/internal/progress"
)

// ErrAlreadyStarted is returned when Start is called twice on one Pickup.
var ErrAlreadyStarted = errors.New("pickup: already started")

// Task is a background consumer that can be started once and joined.
// It is stopped by putting progress.Sentinel() on its channel.
type Task interface {
	Start() error
	Join()
}

// Pickup is the Task that drains a channel until it reads the sentinel.
type Pickup struct {
	ch     progress.Channel
	pres   presentation.Presentation
	detach func()
	log    logr.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
	err     error
}

var _ Task = (*Pickup)(nil)

// New creates a Pickup. detach is called, on the pickup goroutine, before
// any report that did not come from the main goroutine of the main process
// is presented.
func New(ch progress.Channel, pres presentation.Presentation, detach func(), log logr.Logger) *Pickup {
	if detach == nil {
		detach = func() {}
	}
	return &Pickup{
		ch:     ch,
		pres:   pres,
		detach: detach,
		log:    log,
		done:   make(chan struct{}),
	}
}

// Start starts the presentation and the drain goroutine.
func (p *Pickup) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	if err := p.pres.Start(); err != nil {
		return err
	}
	p.started = true
	go p.run()
	p.log.V(2).Info("pickup started")
	return nil
}

// Join blocks until the drain goroutine has exited. It returns at once if
// the pickup was never started.
func (p *Pickup) Join() {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return
	}
	<-p.done
}

// Err returns the channel error that ended the pickup, if it did not end on the sentinel.
func (p *Pickup) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Pickup) run() {
	defer close(p.done)
	defer p.pres.Stop()

	n := 0
	for {
		r, err := p.ch.Get(context.Background())
		if err != nil {
			p.log.Error(err, "pickup stopped reading")
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return
		}
		if r.IsSentinel() {
			p.log.V(2).Info("pickup received end order", "reports", n)
			return
		}
		if !r.Origin.Main() {
			p.detach()
		}
		p.pres.Present(r)
		n++
	}
}
