package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"mpbar/internal/machine"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "cfg"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(home, "cache"))
	t.Setenv("XDG_RUNTIME_DIR", "")

	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDoctor(t *testing.T) {
	out, err := execute(t, "doctor", "--presentation=plain", "--disable")
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	for _, want := range []string{
		"Presentation:  plain (resolved: plain)",
		"Disabled:      true",
		"Config file:   (none)",
		"Machine:       " + machine.PhaseDisabled.String(),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("doctor output missing %q:\n%s", want, out)
		}
	}
}

func TestInvalidPresentation(t *testing.T) {
	_, err := execute(t, "doctor", "--presentation=fancy")
	var ee *ExitError
	if !errors.As(err, &ee) || ee.Code != ExitCLIError {
		t.Fatalf("err = %v, want ExitError with code %d", err, ExitCLIError)
	}
}

func TestDemo_InProcessPhases(t *testing.T) {
	out, err := execute(t, "demo", "--presentation=none", "--children=0", "--loops=1", "--total=5", "--workers=2", "--step=0s")
	if err != nil {
		t.Fatalf("demo: %v", err)
	}
	if !strings.Contains(out, "4 tasks, 17 iterations in") {
		t.Fatalf("unexpected summary: %q", out)
	}
}

func TestWorker(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
	}{
		{"no relay runs disabled", []string{"worker", "--presentation=none", "--total=3", "--step=0s"}, ExitOK},
		{"unreachable relay", []string{"worker", "--relay", "/nonexistent/relay.sock", "--step=0s"}, ExitRelayError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MPBAR_RELAY_ADDR", "")
			_, err := execute(t, tt.args...)
			code := ExitOK
			var ee *ExitError
			if errors.As(err, &ee) {
				code = ee.Code
			} else if err != nil {
				t.Fatalf("unexpected error type: %v", err)
			}
			if code != tt.wantCode {
				t.Fatalf("exit code = %d, want %d (err: %v)", code, tt.wantCode, err)
			}
		})
	}
}

func TestCompletion(t *testing.T) {
	out, err := execute(t, "completion", "bash")
	if err != nil {
		t.Fatalf("completion: %v", err)
	}
	if !strings.Contains(out, "mpbar") {
		t.Fatalf("bash completion does not mention mpbar")
	}
	if _, err := execute(t, "completion", "tcsh"); err == nil {
		t.Fatal("expected error for unsupported shell")
	}
}
