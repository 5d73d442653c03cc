package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fort-nix/nbtest/internal/nix"
)

// NewContainerCommand creates the container command.
func NewContainerCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "container [-- script args...]",
		Short: "Run the scenario in a systemd-nspawn container",
		Long: `Hand control to the external container script, which builds and
enters a container for the selected scenario. Trailing arguments are
forwarded to the script verbatim. Creating the container requires root
(or an equivalent user namespace setup); the script enforces that, not
nbtest.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runContainer(rootOpts, cmd, args)
		},
	}
}

// runContainer replaces orchestration entirely: the script gets the
// terminal, the caller's environment plus the scenario name, and its
// exit status decides ours.
func runContainer(opts *RootOptions, cmd *cobra.Command, args []string) error {
	spec, err := opts.scenarioOrDefault()
	if err != nil {
		return err
	}

	script := opts.Config.ContainerScript
	if _, err := os.Stat(script); err != nil {
		return WrapExitError(ExitCommandError,
			fmt.Sprintf("container script %s is not usable", script), err)
	}

	c := &nix.Command{
		Path:   script,
		Args:   args,
		Env:    append(os.Environ(), "scenario="+spec.Name),
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if err := opts.Runner.Run(cmd.Context(), c); err != nil {
		return WrapExitError(ExitFailure, "container script failed", err)
	}
	return nil
}
