// Package machine owns the lifecycle of the progress pipeline of a process:
// whether a pickup is draining the report channel, when it is restarted so
// that the next independent run starts with a clean display, and how a
// reporter received from a parent process is used instead.
//
// A process has exactly one Machine. Build it once at startup and pass it to
// every call site.
//
//	lease, err := m.FetchReporter(ctx)
//	defer lease.Release()
//	rep := lease.Reporter() // nil when disabled
package machine

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"

	"mpbar/internal/pickup"
	"mpbar/internal/presentation"
	"mpbar/internal/progress"
)

// Detector reports whether ctx belongs to the main goroutine of the main process.
type Detector func(ctx context.Context) bool

// PickupFactory builds the background task that drains ch into pres.
type PickupFactory func(ch progress.Channel, pres presentation.Presentation, detach func(), log logr.Logger) pickup.Task

var errSetupRace = errors.New("setup operation called while the machine is in use")

// env holds the collaborators shared by all states of one Machine.
type env struct {
	log          logr.Logger
	detector     Detector
	presentation presentation.Factory
	newChannel   func() progress.Channel
	newPickup    PickupFactory
	reporterOpts []progress.ReporterOption
}

// Option configures a Machine.
type Option func(*env)

// WithLogger sets the logger. Transitions are logged at V(1).
func WithLogger(log logr.Logger) Option {
	return func(e *env) {
		e.log = log
	}
}

// WithDetector replaces progress.InMain as the main-goroutine detector.
func WithDetector(d Detector) Option {
	return func(e *env) {
		e.detector = d
	}
}

// WithPresentation sets the factory called for every pickup start.
func WithPresentation(f presentation.Factory) Option {
	return func(e *env) {
		e.presentation = f
	}
}

// WithChannel sets how the report channel is created on first use.
func WithChannel(f func() progress.Channel) Option {
	return func(e *env) {
		e.newChannel = f
	}
}

// WithPickup replaces the pickup implementation (useful for testing).
func WithPickup(f PickupFactory) Option {
	return func(e *env) {
		e.newPickup = f
	}
}

// WithReporterOptions configures reporters created by the machine.
func WithReporterOptions(opts ...progress.ReporterOption) Option {
	return func(e *env) {
		e.reporterOpts = append(e.reporterOpts, opts...)
	}
}

// Machine is the process-wide coordination point for progress reporting.
type Machine struct {
	mu    sync.Mutex
	state State
	env   *env
}

// New creates a Machine in the Initial phase. Nothing is started until a
// reporter is first requested.
func New(opts ...Option) *Machine {
	e := &env{
		log:          logr.Discard(),
		detector:     progress.InMain,
		presentation: func() presentation.Presentation { return presentation.Null{} },
		newChannel:   func() progress.Channel { return progress.NewQueue() },
		newPickup: func(ch progress.Channel, pres presentation.Presentation, detach func(), log logr.Logger) pickup.Task {
			return pickup.New(ch, pres, detach, log)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithName("machine")
	return &Machine{state: &initial{base: base{env: e}}, env: e}
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Phase()
}

// FindReporter returns the reporter, starting the pickup if none is running.
// A pickup start failure is returned, but the reporter is still usable:
// its reports wait on the channel until a later pickup drains them.
func (m *Machine) FindReporter() (*progress.Reporter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.state.prepareReporter()
	m.transition(next)
	return m.state.reporter(), err
}

// RegisterReporter makes this machine use r, typically a reporter built in a
// parent process, and never manage a pickup itself.
//
// It must be called during single-goroutine setup, before any other method.
func (m *Machine) RegisterReporter(r *progress.Reporter) {
	m.setup("RegisterReporter", func(s State) State { return s.registerReporter(r) })
}

// Disable turns progress reporting off. Reporters handed out afterwards are nil.
//
// It must be called during single-goroutine setup, before any other method.
func (m *Machine) Disable() {
	m.setup("Disable", func(s State) State { return s.disable() })
}

// Flush restarts the pickup, starting one if none is running.
func (m *Machine) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.state.flush()
	m.transition(next)
	return err
}

// Shutdown stops the pickup, if any, and returns to the Initial phase. The
// reporter and channel are kept and reused by the next pickup.
func (m *Machine) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := m.state.shutdown()
	m.transition(next)
	return err
}

// FetchReporter acquires the reporter for the duration of one loop.
//
// The returned Lease is never nil, even with a non-nil error, and must be
// released exactly when the loop ends, usually with defer. Releasing the
// outermost lease taken on the main goroutine restarts the pickup unless
// reports from other goroutines or processes were seen in the meantime.
func (m *Machine) FetchReporter(ctx context.Context) (*Lease, error) {
	m.mu.Lock()
	next, err := m.state.prepareReporter()
	m.transition(next)
	s := m.state
	m.mu.Unlock()

	rep, release := s.fetchReporter(ctx, &m.mu)
	return &Lease{reporter: rep, release: release}, err
}

// setup applies an unguarded setup transition. These are documented to run
// before the machine is shared; if the lock is busy the precondition was
// broken, which is logged before waiting for the lock anyway.
func (m *Machine) setup(op string, fn func(State) State) {
	if !m.mu.TryLock() {
		m.env.log.Error(errSetupRace, "lifecycle operation in progress", "op", op)
		m.mu.Lock()
	}
	defer m.mu.Unlock()
	m.transition(fn(m.state))
}

// transition must be called with mu held.
func (m *Machine) transition(next State) {
	if next == m.state {
		return
	}
	m.env.log.V(1).Info("transition", "from", m.state.Phase().String(), "to", next.Phase().String())
	m.state = next
}

// Lease is the scoped hold on a reporter returned by FetchReporter.
type Lease struct {
	reporter *progress.Reporter
	release  func() error

	once sync.Once
	err  error
}

// Reporter returns the leased reporter; nil when reporting is disabled.
func (l *Lease) Reporter() *progress.Reporter {
	return l.reporter
}

// Release ends the lease. Only the first call has an effect; later calls
// return the first call's result.
func (l *Lease) Release() error {
	l.once.Do(func() {
		if l.release != nil {
			l.err = l.release()
		}
	})
	return l.err
}
