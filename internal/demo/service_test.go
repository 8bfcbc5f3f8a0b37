package demo

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"mpbar/internal/machine"
	"mpbar/internal/presentation"
	"mpbar/internal/progress"
	"mpbar/internal/relay"
	"mpbar/internal/worker"
)

type recordingPresentation struct {
	mu     sync.Mutex
	starts int
	names  map[string]bool
}

func (p *recordingPresentation) factory() presentation.Presentation { return p }

func (p *recordingPresentation) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts++
	return nil
}

func (p *recordingPresentation) Present(r progress.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.names == nil {
		p.names = map[string]bool{}
	}
	p.names[r.Name] = true
}

func (p *recordingPresentation) Stop() {}

func (p *recordingPresentation) saw(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.names[name]
}

// fakeRunner plays the part of a worker process: it connects to the relay
// named in the process environment and reports one loop.
type fakeRunner struct {
	mu    sync.Mutex
	specs []worker.Spec
	fail  string
}

func (f *fakeRunner) Run(ctx context.Context, spec worker.Spec) (worker.Result, error) {
	f.mu.Lock()
	f.specs = append(f.specs, spec)
	f.mu.Unlock()

	name := argAfter(spec.Args, "--name")
	if name == f.fail {
		return worker.Result{Code: 2}, errors.New("exit status 2")
	}
	var addr string
	for _, kv := range spec.Env {
		if v, ok := strings.CutPrefix(kv, relay.AddrEnv+"="); ok {
			addr = v
		}
	}
	if addr == "" {
		return worker.Result{}, nil
	}
	snd, err := relay.Dial(addr)
	if err != nil {
		return worker.Result{Code: 1}, err
	}
	defer snd.Close()
	rep := progress.NewReporter(snd, progress.WithInterval(0))
	for i := 0; i <= 3; i++ {
		if err := rep.Report(ctx, progress.Report{TaskID: name, Name: name, Done: i, Total: 3}); err != nil {
			return worker.Result{Code: 1}, err
		}
	}
	return worker.Result{}, nil
}

func argAfter(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func newDemo(t *testing.T, runner worker.Runner, opts ...Option) (*Service, *machine.Machine, *recordingPresentation) {
	t.Helper()
	pres := &recordingPresentation{}
	m := machine.New(
		machine.WithPresentation(pres.factory),
		machine.WithReporterOptions(progress.WithInterval(0)),
	)
	base := []Option{
		WithLoops(1),
		WithTotal(5),
		WithWorkers(2),
		WithChildren(2),
		WithStep(0),
		WithRunner(runner),
		WithExecutable("/usr/bin/mpbar"),
		WithRuntimeDir(t.TempDir()),
	}
	return NewService(m, append(base, opts...)...), m, pres
}

func TestService_RunAllPhases(t *testing.T) {
	runner := &fakeRunner{}
	svc, m, pres := newDemo(t, runner)

	sum, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Phase() != machine.PhaseInitial {
		t.Fatalf("phase after run = %s, want initial", m.Phase())
	}
	for _, name := range []string{"main 1", "main 1.5", "worker 1", "worker 2", "process 1", "process 2"} {
		if !pres.saw(name) {
			t.Errorf("no report presented for %q", name)
		}
	}
	if sum.Tasks != 6 {
		t.Errorf("tasks = %d, want 6", sum.Tasks)
	}
	if want := 5 + 2 + 2*5 + 2*5; sum.Iterations != want {
		t.Errorf("iterations = %d, want %d", sum.Iterations, want)
	}

	if len(runner.specs) != 2 {
		t.Fatalf("runner called %d times, want 2", len(runner.specs))
	}
	for _, spec := range runner.specs {
		if spec.Path != "/usr/bin/mpbar" || spec.Args[0] != "worker" {
			t.Errorf("unexpected spec %v %v", spec.Path, spec.Args)
		}
		if !hasPrefix(spec.Env, progress.ParentPIDEnv+"=") {
			t.Errorf("child env misses %s: %v", progress.ParentPIDEnv, spec.Env)
		}
	}
}

func TestService_WorkerFailure(t *testing.T) {
	svc, m, _ := newDemo(t, &fakeRunner{fail: "process 2"})

	_, err := svc.Run(context.Background())
	if !errors.Is(err, ErrWorker) {
		t.Fatalf("err = %v, want ErrWorker", err)
	}
	if m.Phase() != machine.PhaseInitial {
		t.Fatalf("machine not shut down after failure: %s", m.Phase())
	}
}

func TestService_Disabled(t *testing.T) {
	runner := &fakeRunner{}
	svc, m, pres := newDemo(t, runner)
	m.Disable()

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if pres.starts != 0 {
		t.Fatalf("presentation started %d times while disabled", pres.starts)
	}
	for _, spec := range runner.specs {
		if hasPrefix(spec.Env, relay.AddrEnv+"=") {
			t.Fatalf("relay address handed out while disabled: %v", spec.Env)
		}
	}
}

func TestService_Canceled(t *testing.T) {
	svc, _, _ := newDemo(t, &fakeRunner{}, WithStep(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestWork_LabelsLoops(t *testing.T) {
	pres := &recordingPresentation{}
	m := machine.New(machine.WithPresentation(pres.factory))
	ctx := progress.WithWorker(context.Background(), "w")

	if err := Work(ctx, m, "w", 2, 3, 0); err != nil {
		t.Fatalf("Work: %v", err)
	}
	if err := m.Shutdown(); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"w #1", "w #2"} {
		if !pres.saw(name) {
			t.Errorf("no report for %q", name)
		}
	}
}

func hasPrefix(env []string, prefix string) bool {
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return true
		}
	}
	return false
}
