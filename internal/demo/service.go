// Package demo runs a synthetic workload that exercises every way progress
// can be reported: nested loops on the main goroutine, worker goroutines and
// worker processes.
package demo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"mpbar/internal/machine"
	"mpbar/internal/progress"
	"mpbar/internal/relay"
	"mpbar/internal/tracker"
	"mpbar/internal/worker"
)

var (
	// ErrWorker marks failures of a worker process.
	ErrWorker = errors.New("worker failed")
	// ErrRelay marks failures to set up the cross-process relay.
	ErrRelay = errors.New("relay failed")
)

// Service orchestrates the demo phases against one Machine.
type Service struct {
	m   *machine.Machine
	log logr.Logger

	loops    int
	total    int
	workers  int
	children int
	step     time.Duration

	runner     worker.Runner
	executable string
	runtimeDir string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log logr.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithLoops sets how many outer loops run on the main goroutine.
func WithLoops(n int) Option {
	return func(s *Service) {
		s.loops = n
	}
}

// WithTotal sets the iteration count of every loop.
func WithTotal(n int) Option {
	return func(s *Service) {
		s.total = n
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(s *Service) {
		s.workers = n
	}
}

// WithChildren sets the number of worker processes. Zero skips the phase.
func WithChildren(n int) Option {
	return func(s *Service) {
		s.children = n
	}
}

// WithStep sets the simulated duration of one iteration.
func WithStep(d time.Duration) Option {
	return func(s *Service) {
		s.step = d
	}
}

// WithRunner injects a custom process runner (useful for testing).
func WithRunner(r worker.Runner) Option {
	return func(s *Service) {
		s.runner = r
	}
}

// WithExecutable sets the binary spawned for worker processes.
func WithExecutable(path string) Option {
	return func(s *Service) {
		s.executable = path
	}
}

// WithRuntimeDir sets where the relay socket is created.
func WithRuntimeDir(dir string) Option {
	return func(s *Service) {
		s.runtimeDir = dir
	}
}

// NewService constructs a Service with sensible defaults.
func NewService(m *machine.Machine, opts ...Option) *Service {
	s := &Service{
		m:       m,
		log:     logr.Discard(),
		loops:   2,
		total:   20,
		workers: 3,
		step:    50 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = worker.ExecRunner{}
	}
	s.log = s.log.WithName("demo")
	return s
}

// Summary describes a finished run.
type Summary struct {
	Tasks      int
	Iterations int
	Elapsed    time.Duration
}

// Run executes all phases and shuts the machine down at the end.
func (s *Service) Run(ctx context.Context) (sum Summary, err error) {
	start := time.Now()
	defer func() {
		err = errors.Join(err, s.m.Shutdown())
		sum.Elapsed = time.Since(start)
	}()

	inner := s.total / 2
	s.log.V(1).Info("main phase", "loops", s.loops)
	for l := 0; l < s.loops; l++ {
		name := "main " + strconv.Itoa(l+1)
		err := tracker.Range(ctx, s.m, name, s.total, func(ctx context.Context, i int) error {
			if i%5 == 4 {
				sum.Tasks++
				sum.Iterations += inner
				return tracker.Range(ctx, s.m, fmt.Sprintf("%s.%d", name, i+1), inner, func(ctx context.Context, _ int) error {
					return pause(ctx, s.step)
				})
			}
			return pause(ctx, s.step)
		})
		if err != nil {
			return sum, err
		}
		sum.Tasks++
		sum.Iterations += s.total
	}

	if s.workers > 0 {
		s.log.V(1).Info("goroutine phase", "workers", s.workers)
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < s.workers; w++ {
			name := "worker " + strconv.Itoa(w+1)
			g.Go(func() error {
				return Work(progress.WithWorker(gctx, name), s.m, name, 1, s.total, s.step)
			})
		}
		if err := g.Wait(); err != nil {
			return sum, err
		}
		sum.Tasks += s.workers
		sum.Iterations += s.workers * s.total
		if err := s.m.Flush(); err != nil {
			return sum, err
		}
	}

	if s.children > 0 {
		s.log.V(1).Info("process phase", "children", s.children)
		if err := s.runChildren(ctx); err != nil {
			return sum, err
		}
		sum.Tasks += s.children
		sum.Iterations += s.children * s.total
		if err := s.m.Flush(); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (s *Service) runChildren(ctx context.Context) error {
	exe := s.executable
	if exe == "" {
		p, err := worker.Self()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrWorker, err)
		}
		exe = p
	}

	env := []string{progress.ParentEnv()}
	rep, err := s.m.FindReporter()
	if err != nil {
		s.log.Error(err, "pickup not running, child reports will wait")
	}
	if rep != nil {
		srv, err := relay.Listen(s.runtimeDir, relay.WithLogger(s.log.WithName("relay")))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRelay, err)
		}
		served := make(chan error, 1)
		go func() { served <- srv.Serve(ctx, rep.Channel()) }()
		defer func() {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				s.log.Error(err, "relay shutdown")
			}
			if err := <-served; err != nil {
				s.log.Error(err, "relay serve")
			}
		}()
		env = worker.ChildEnv(srv.Addr())
	}

	g, gctx := errgroup.WithContext(ctx)
	for c := 0; c < s.children; c++ {
		name := "process " + strconv.Itoa(c+1)
		spec := worker.Spec{
			Path: exe,
			Args: []string{
				"worker",
				"--name", name,
				"--loops", "1",
				"--total", strconv.Itoa(s.total),
				"--step", s.step.String(),
			},
			Env: env,
			StderrLine: func(line string) {
				s.log.V(2).Info(line, "worker", name)
			},
		}
		g.Go(func() error {
			res, err := s.runner.Run(gctx, spec)
			if err != nil {
				s.log.Error(err, "worker process failed", "worker", name, "code", res.Code)
				return fmt.Errorf("%w: %s: %w", ErrWorker, name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Work runs loops loops of total iterations under name. It is the body of
// worker goroutines and worker processes.
func Work(ctx context.Context, m *machine.Machine, name string, loops, total int, step time.Duration) error {
	for l := 0; l < loops; l++ {
		label := name
		if loops > 1 {
			label = fmt.Sprintf("%s #%d", name, l+1)
		}
		if err := tracker.Range(ctx, m, label, total, func(ctx context.Context, _ int) error {
			return pause(ctx, step)
		}); err != nil {
			return err
		}
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
