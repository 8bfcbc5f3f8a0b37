package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mpbar/internal/config"
	"mpbar/internal/dirs"
	"mpbar/internal/presentation"
	"mpbar/internal/progress"
	"mpbar/internal/relay"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Show how progress will be displayed and where state lives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := appFrom(cmd)
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			out := cmd.OutOrStdout()
			cfg := config.ConfigFile()
			if cfg == "" {
				cfg = "(none)"
			}
			runDir, err := dirs.RuntimeDir()
			if err != nil {
				runDir = "unavailable: " + err.Error()
			}

			fmt.Fprintf(out, "Terminal:      %t\n", presentation.IsTerminal(os.Stderr))
			fmt.Fprintf(out, "Presentation:  %s (resolved: %s)\n", rt.settings.Presentation, presentation.Resolve(rt.settings.Presentation, os.Stderr))
			fmt.Fprintf(out, "Disabled:      %t\n", rt.settings.Disabled)
			fmt.Fprintf(out, "Throttle:      %s\n", rt.settings.Throttle)
			fmt.Fprintf(out, "Config file:   %s\n", cfg)
			fmt.Fprintf(out, "Runtime dir:   %s\n", runDir)
			fmt.Fprintf(out, "Child process: %t\n", progress.IsChildProcess())
			if addr := os.Getenv(relay.AddrEnv); addr != "" {
				fmt.Fprintf(out, "Relay:         %s\n", addr)
			}
			fmt.Fprintf(out, "Machine:       %s\n", rt.machine.Phase())
			return nil
		},
	}
}
