package machine

import (
	"context"
	"sync"
	"sync/atomic"

	"mpbar/internal/pickup"
	"mpbar/internal/progress"
)

// started: a pickup is (normally) draining the channel into a presentation.
// task is nil only if the last pickup start failed.
type started struct {
	base
	rep  *progress.Reporter
	ch   progress.Channel
	task pickup.Task

	inUse         atomic.Bool // the outermost main-goroutine lease is held
	shouldRestart atomic.Bool // cleared by detach
	retired       atomic.Bool // the machine has left this state
}

func newStarted(e *env, rep *progress.Reporter, ch progress.Channel) (*started, error) {
	if rep == nil {
		if ch == nil {
			ch = e.newChannel()
		}
		rep = progress.NewReporter(ch, e.reporterOpts...)
	} else if ch == nil {
		ch = rep.Channel()
	}
	s := &started{base: base{env: e}, rep: rep, ch: ch}
	s.shouldRestart.Store(true)
	return s, s.startPickup()
}

func (s *started) Phase() Phase { return PhaseStarted }

func (s *started) reporter() *progress.Reporter { return s.rep }

func (s *started) prepareReporter() (State, error) { return s, nil }

func (s *started) fetchReporter(ctx context.Context, mu sync.Locker) (*progress.Reporter, func() error) {
	if !s.env.detector(ctx) {
		return s.rep, noRelease
	}
	if !s.inUse.CompareAndSwap(false, true) {
		return s.rep, noRelease
	}
	s.shouldRestart.Store(true)

	return s.rep, func() error {
		s.inUse.Store(false)
		if !s.shouldRestart.Load() {
			s.env.log.V(2).Info("pickup kept, reports from other goroutines or processes were seen")
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		if s.retired.Load() {
			return nil
		}
		return s.restartPickup()
	}
}

// detach is called by the pickup for reports not produced on the main goroutine.
func (s *started) detach() {
	s.shouldRestart.Store(false)
}

func (s *started) registerReporter(r *progress.Reporter) State {
	s.leave()
	return s.base.registerReporter(r)
}

func (s *started) disable() State {
	s.leave()
	return s.base.disable()
}

func (s *started) flush() (State, error) {
	return s, s.restartPickup()
}

func (s *started) shutdown() (State, error) {
	err := s.endPickup()
	s.retired.Store(true)
	return &initial{base: s.base, rep: s.rep, ch: s.ch}, err
}

func (s *started) leave() {
	if err := s.endPickup(); err != nil {
		s.env.log.Error(err, "failed to end pickup")
	}
	s.retired.Store(true)
}

func (s *started) restartPickup() error {
	s.env.log.V(2).Info("restarting pickup")
	if err := s.endPickup(); err != nil {
		return err
	}
	return s.startPickup()
}

func (s *started) startPickup() error {
	task := s.env.newPickup(s.ch, s.env.presentation(), s.detach, s.env.log.WithName("pickup"))
	if err := task.Start(); err != nil {
		s.env.log.Error(err, "failed to start pickup")
		return err
	}
	s.task = task
	return nil
}

// endPickup puts the sentinel and waits for the pickup to exit.
func (s *started) endPickup() error {
	if s.task == nil {
		return nil
	}
	task := s.task
	s.task = nil
	err := s.ch.Put(progress.Sentinel())
	task.Join()
	return err
}
