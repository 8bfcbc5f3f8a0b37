package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mpbar/internal/demo"
	"mpbar/internal/dirs"
)

func newDemoCmd() *cobra.Command {
	var (
		loops, total, workers, children int
		step                            time.Duration
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a synthetic workload with nested loops, goroutines and worker processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := appFrom(cmd)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			runDir, err := dirs.RuntimeDir()
			if err == nil {
				err = dirs.Ensure(runDir)
			}
			if err != nil && children > 0 {
				return &ExitError{Code: ExitRelayError, Err: fmt.Errorf("runtime dir: %w", err)}
			}

			svc := demo.NewService(rt.machine,
				demo.WithLogger(rt.log),
				demo.WithLoops(loops),
				demo.WithTotal(total),
				demo.WithWorkers(workers),
				demo.WithChildren(children),
				demo.WithStep(step),
				demo.WithRuntimeDir(runDir),
			)
			sum, err := svc.Run(cmd.Context())
			switch {
			case errors.Is(err, demo.ErrRelay):
				return &ExitError{Code: ExitRelayError, Err: err}
			case errors.Is(err, demo.ErrWorker):
				return &ExitError{Code: ExitWorkerError, Err: err}
			case err != nil:
				return &ExitError{Code: ExitCLIError, Err: err}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s tasks, %s iterations in %s\n",
				humanize.Comma(int64(sum.Tasks)),
				humanize.Comma(int64(sum.Iterations)),
				sum.Elapsed.Round(time.Millisecond),
			)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&loops, "loops", 2, "Outer loops on the main goroutine")
	f.IntVar(&total, "total", 20, "Iterations per loop")
	f.IntVar(&workers, "workers", 3, "Worker goroutines")
	f.IntVar(&children, "children", 2, "Worker processes (0 to skip)")
	f.DurationVar(&step, "step", 50*time.Millisecond, "Simulated duration of one iteration")
	return cmd
}
