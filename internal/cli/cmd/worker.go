package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mpbar/internal/demo"
	"mpbar/internal/progress"
	"mpbar/internal/relay"
)

func newWorkerCmd() *cobra.Command {
	var (
		addr, name string
		loops      int
		total      int
		step       time.Duration
	)
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Run loops in a worker process, reporting to the parent through a relay",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := appFrom(cmd)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			if addr == "" {
				addr = os.Getenv(relay.AddrEnv)
			}

			switch {
			case rt.settings.Disabled:
			case addr == "":
				rt.log.V(1).Info("no relay address, progress disabled")
				rt.machine.Disable()
			default:
				snd, err := relay.Dial(addr)
				if err != nil {
					return &ExitError{Code: ExitRelayError, Err: err}
				}
				defer snd.Close()
				rt.machine.RegisterReporter(progress.NewReporter(snd, reporterOptions(rt.settings, rt.log)...))
			}

			if err := demo.Work(cmd.Context(), rt.machine, name, loops, total, step); err != nil {
				return &ExitError{Code: ExitWorkerError, Err: fmt.Errorf("%s: %w", name, err)}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "relay", "", "Relay socket (default $"+relay.AddrEnv+")")
	f.StringVar(&name, "name", "worker", "Task name prefix")
	f.IntVar(&loops, "loops", 1, "Loops to run")
	f.IntVar(&total, "total", 20, "Iterations per loop")
	f.DurationVar(&step, "step", 50*time.Millisecond, "Simulated duration of one iteration")
	return cmd
}
