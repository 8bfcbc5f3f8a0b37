package pickup

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"mpbar/internal/progress"
)

type recordingPresentation struct {
	mu       sync.Mutex
	reports  []progress.Report
	started  int
	stopped  int
	startErr error
}

func (p *recordingPresentation) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startErr != nil {
		return p.startErr
	}
	p.started++
	return nil
}

func (p *recordingPresentation) Present(r progress.Report) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
}

func (p *recordingPresentation) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped++
}

func TestPickup_DrainsUntilSentinel(t *testing.T) {
	q := progress.NewQueue()
	pres := &recordingPresentation{}
	p := New(q, pres, nil, logr.Discard())

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		_ = q.Put(progress.Report{TaskID: "t", Done: i, Total: 5})
	}
	_ = q.Put(progress.Sentinel())

	joined := make(chan struct{})
	go func() {
		p.Join()
		close(joined)
	}()
	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("Join() did not return after sentinel")
	}

	if len(pres.reports) != 5 {
		t.Errorf("presented %d reports, want 5", len(pres.reports))
	}
	if pres.started != 1 || pres.stopped != 1 {
		t.Errorf("presentation started=%d stopped=%d, want 1/1", pres.started, pres.stopped)
	}
}

func TestPickup_DetachOnForeignOrigin(t *testing.T) {
	tests := []struct {
		name       string
		origin     progress.Origin
		wantDetach int32
	}{
		{name: "main goroutine", origin: progress.Origin{PID: 1}, wantDetach: 0},
		{name: "worker goroutine", origin: progress.Origin{PID: 1, Worker: "w"}, wantDetach: 1},
		{name: "child process", origin: progress.Origin{PID: 2, Child: true}, wantDetach: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := progress.NewQueue()
			var detached atomic.Int32
			p := New(q, &recordingPresentation{}, func() { detached.Add(1) }, logr.Discard())
			if err := p.Start(); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			_ = q.Put(progress.Report{TaskID: "t", Origin: tt.origin})
			_ = q.Put(progress.Sentinel())
			p.Join()

			if got := detached.Load(); got != tt.wantDetach {
				t.Errorf("detach called %d times, want %d", got, tt.wantDetach)
			}
		})
	}
}

func TestPickup_StartTwice(t *testing.T) {
	q := progress.NewQueue()
	p := New(q, &recordingPresentation{}, nil, logr.Discard())
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	_ = q.Put(progress.Sentinel())
	p.Join()
}

func TestPickup_PresentationStartFailure(t *testing.T) {
	want := errors.New("no terminal")
	p := New(progress.NewQueue(), &recordingPresentation{startErr: want}, nil, logr.Discard())
	if err := p.Start(); !errors.Is(err, want) {
		t.Errorf("Start() error = %v, want %v", err, want)
	}
	// never started: Join must not block
	p.Join()
}

func TestPickup_ClosedChannelEndsRun(t *testing.T) {
	q := progress.NewQueue()
	pres := &recordingPresentation{}
	p := New(q, pres, nil, logr.Discard())
	if err := p.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	q.Close()
	p.Join()
	if !errors.Is(p.Err(), progress.ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", p.Err())
	}
	if pres.stopped != 1 {
		t.Errorf("presentation stopped %d times, want 1", pres.stopped)
	}
}
