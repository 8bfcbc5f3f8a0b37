package presentation

import (
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"mpbar/internal/progress"
)

// TUI renders one animated progress bar per task with bubbletea.
//
// Each TUI is used for a single pickup run. Its last frame stays on the
// terminal after Stop, so the next run draws below it.
type TUI struct {
	out  io.Writer
	prog *tea.Program
	done chan struct{}

	mu  sync.Mutex
	err error
}

// NewTUI creates a TUI writing to out.
func NewTUI(out io.Writer) *TUI {
	return &TUI{out: out}
}

// Start launches the bubbletea program. It does not read from stdin.
func (t *TUI) Start() error {
	t.prog = tea.NewProgram(newModel(),
		tea.WithOutput(t.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	t.done = make(chan struct{})
	go func() {
		defer close(t.done)
		if _, err := t.prog.Run(); err != nil {
			t.mu.Lock()
			t.err = err
			t.mu.Unlock()
		}
	}()
	return nil
}

func (t *TUI) Present(r progress.Report) {
	if t.prog == nil {
		return
	}
	t.prog.Send(reportMsg{R: r})
}

// Stop renders the final frame and waits for the program to exit.
func (t *TUI) Stop() {
	if t.prog == nil {
		return
	}
	t.prog.Send(stopMsg{})
	<-t.done
}

// Err returns the error the program exited with, if any.
func (t *TUI) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
