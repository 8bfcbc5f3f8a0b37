package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"mpbar/internal/config"
	"mpbar/internal/logging"
	"mpbar/internal/machine"
	"mpbar/internal/presentation"
	"mpbar/internal/progress"
)

const (
	ExitOK          = 0
	ExitCLIError    = 1
	ExitWorkerError = 2
	ExitRelayError  = 3
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// app is what every subcommand needs, built once from the resolved settings.
type app struct {
	settings config.Settings
	log      logr.Logger
	machine  *machine.Machine
}

type ctxKey string

const appKey ctxKey = "app"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mpbar",
		Short:         "Progress bars for nested loops, goroutines and worker processes",
		Long:          "mpbar shows one progress display per independent run of work, whether the loops run nested on the main goroutine, on worker goroutines, or in worker processes that report back through a relay.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newApp(cmd.Root())
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, rt))
			return nil
		},
	}
	config.AddFlags(root)

	root.AddCommand(newDemoCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newCompletionCmd())

	return root
}

func newApp(root *cobra.Command) (*app, error) {
	if err := config.Init(root); err != nil {
		return nil, err
	}
	s, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(root.ErrOrStderr(), s.LogLevel)

	m := machine.New(
		machine.WithLogger(log),
		machine.WithPresentation(presentation.NewFactory(s.Presentation, os.Stderr, presentation.Options{
			PlainInterval: s.PlainInterval,
		})),
		machine.WithReporterOptions(reporterOptions(s, log)...),
	)
	if s.Disabled {
		m.Disable()
	}
	return &app{settings: s, log: log, machine: m}, nil
}

func reporterOptions(s config.Settings, log logr.Logger) []progress.ReporterOption {
	return []progress.ReporterOption{
		progress.WithInterval(s.Throttle),
		progress.WithLogger(log.WithName("reporter")),
	}
}

func appFrom(cmd *cobra.Command) (*app, error) {
	rt, ok := cmd.Context().Value(appKey).(*app)
	if !ok {
		return nil, errors.New("command not initialized")
	}
	return rt, nil
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	root := newRootCmd()
	return root.ExecuteContext(ctx)
}
