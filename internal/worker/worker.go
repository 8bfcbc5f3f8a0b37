// Package worker spawns worker processes that report progress back to the
// parent through a relay.
package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"mpbar/internal/progress"
	"mpbar/internal/relay"
)

// Spec describes a subprocess to run.
type Spec struct {
	Path string   // Binary path
	Args []string // Arguments
	Env  []string // Extra KEY=VALUE pairs appended to the inherited environment.
	Dir  string   // Working directory; empty = inherit.

	StdoutLine func(string) // Called for each stdout line (if non-nil)
	StderrLine func(string) // Called for each stderr line (if non-nil)
}

// Result contains the exit status and the tail of stderr.
type Result struct {
	Stderr []byte
	Code   int
}

// Runner runs subprocesses.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

// ExecRunner runs subprocesses with os/exec.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

// maxLine bounds a single output line.
const maxLine = 1024 * 1024

// Run executes the command and waits for it. Output lines are handed to the
// callbacks as they arrive. On non-zero exit it returns an error describing
// the exit code along with the populated Result.
func (ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Code: -1}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return Result{Code: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{Code: -1}, err
	}

	var stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scan(stdout, spec.StdoutLine, nil)
	}()
	go func() {
		defer wg.Done()
		scan(stderr, spec.StderrLine, &stderrBuf)
	}()

	// Pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	code := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}
	res := Result{Stderr: stderrBuf.Bytes(), Code: code}
	if waitErr != nil {
		return res, fmt.Errorf("%s failed (exit %d): %w", shellQuote(spec.Path, spec.Args), code, waitErr)
	}
	return res, nil
}

func scan(r io.Reader, fn func(string), capture *bytes.Buffer) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		line := sc.Text()
		if fn != nil {
			fn(line)
		}
		if capture != nil {
			capture.WriteString(line)
			capture.WriteByte('\n')
		}
	}
	// Drain whatever is left so the child never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// ChildEnv returns the environment that makes a spawned process a child of
// this one, reporting through the relay at addr.
func ChildEnv(addr string) []string {
	return []string{progress.ParentEnv(), relay.AddrEnv + "=" + addr}
}

// Self returns the path of the running executable, used to spawn workers.
func Self() (string, error) {
	p, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("could not locate own executable: %w", err)
	}
	return p, nil
}

// shellQuote returns a printable shell-like command string for logging.
func shellQuote(path string, args []string) string {
	b := &strings.Builder{}
	b.WriteString(quote(path))
	for _, a := range args {
		b.WriteByte(' ')
		b.WriteString(quote(a))
	}
	return b.String()
}

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.ContainsAny(s, " \t\n\"'\\$`(){}[]*&;|<>?!") {
		return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
	}
	return s
}
