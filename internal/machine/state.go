package machine

import (
	"context"
	"sync"

	"mpbar/internal/progress"
)

// Phase names a lifecycle state.
type Phase int

const (
	PhaseInitial Phase = iota
	PhaseStarted
	PhaseRegistered
	PhaseDisabled
)

func (p Phase) String() string {
	switch p {
	case PhaseInitial:
		return "initial"
	case PhaseStarted:
		return "started"
	case PhaseRegistered:
		return "registered"
	case PhaseDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// State is one phase of the lifecycle. Transitions return the next State;
// the Machine replaces its current state with it under its mutex.
type State interface {
	Phase() Phase

	reporter() *progress.Reporter
	prepareReporter() (State, error)
	registerReporter(r *progress.Reporter) State
	disable() State
	fetchReporter(ctx context.Context, mu sync.Locker) (*progress.Reporter, func() error)
	flush() (State, error)
	shutdown() (State, error)
}

func noRelease() error { return nil }

// base carries the transitions shared by every state.
type base struct {
	env *env
}

func (b base) registerReporter(r *progress.Reporter) State {
	return &registered{base: b, rep: r}
}

func (b base) disable() State {
	return &disabled{base: b}
}

func (b base) fetchReporter(context.Context, sync.Locker) (*progress.Reporter, func() error) {
	return nil, noRelease
}

// initial: no pickup is running. It may hold the reporter and channel of a
// pickup that was shut down.
type initial struct {
	base
	rep *progress.Reporter
	ch  progress.Channel
}

func (s *initial) Phase() Phase { return PhaseInitial }

func (s *initial) reporter() *progress.Reporter { return s.rep }

func (s *initial) prepareReporter() (State, error) {
	return newStarted(s.env, s.rep, s.ch)
}

func (s *initial) fetchReporter(context.Context, sync.Locker) (*progress.Reporter, func() error) {
	return s.rep, noRelease
}

func (s *initial) flush() (State, error) {
	return newStarted(s.env, s.rep, s.ch)
}

func (s *initial) shutdown() (State, error) { return s, nil }

// registered: the reporter came from elsewhere, typically a parent process.
// No pickup is ever managed here.
type registered struct {
	base
	rep *progress.Reporter
}

func (s *registered) Phase() Phase { return PhaseRegistered }

func (s *registered) reporter() *progress.Reporter { return s.rep }

func (s *registered) prepareReporter() (State, error) { return s, nil }

func (s *registered) fetchReporter(context.Context, sync.Locker) (*progress.Reporter, func() error) {
	return s.rep, noRelease
}

func (s *registered) flush() (State, error) { return s, nil }

func (s *registered) shutdown() (State, error) { return s, nil }

// disabled: reporting is off and no reporter is handed out.
type disabled struct {
	base
}

func (s *disabled) Phase() Phase { return PhaseDisabled }

func (s *disabled) reporter() *progress.Reporter { return nil }

func (s *disabled) prepareReporter() (State, error) { return s, nil }

func (s *disabled) flush() (State, error) { return s, nil }

func (s *disabled) shutdown() (State, error) { return s, nil }
