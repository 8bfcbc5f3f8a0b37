// Package presentation renders progress reports for the user.
package presentation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"mpbar/internal/progress"
)

// Presentation renders the reports drained by one pickup run.
// Start is called before the first Present; Stop after the last.
type Presentation interface {
	Start() error
	Present(r progress.Report)
	Stop()
}

// Factory creates a fresh Presentation for each pickup run.
type Factory func() Presentation

// Mode selects a rendering strategy.
type Mode string

const (
	ModeAuto  Mode = "auto"
	ModeTUI   Mode = "tui"
	ModePlain Mode = "plain"
	ModeNone  Mode = "none"
)

// ParseMode validates a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeTUI, ModePlain, ModeNone:
		return m, nil
	default:
		return "", fmt.Errorf("invalid presentation %q (valid: auto|tui|plain|none)", s)
	}
}

// Options tunes the renderers.
type Options struct {
	// PlainInterval is the minimum gap between two lines for the same task in plain mode.
	PlainInterval time.Duration
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Resolve turns ModeAuto into a concrete mode for out.
func Resolve(mode Mode, out *os.File) Mode {
	if mode != ModeAuto {
		return mode
	}
	if IsTerminal(out) {
		return ModeTUI
	}
	return ModePlain
}

// NewFactory returns a Factory producing renderers for mode writing to out.
func NewFactory(mode Mode, out *os.File, opts Options) Factory {
	var w io.Writer = out
	switch Resolve(mode, out) {
	case ModeTUI:
		return func() Presentation { return NewTUI(w) }
	case ModePlain:
		return func() Presentation { return NewPlain(w, opts.PlainInterval) }
	default:
		return func() Presentation { return Null{} }
	}
}

// Null discards every report.
type Null struct{}

func (Null) Start() error { return nil }

func (Null) Present(progress.Report) {}

func (Null) Stop() {}
