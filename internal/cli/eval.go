package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fort-nix/nbtest/internal/nix"
)

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Evaluate the scenario's test expression without building",
		Long: `Evaluate the selected scenario's test derivation via
nix-instantiate and print the resulting store path. Nothing is built,
so this is a fast syntax and evaluation check for module changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, cmd)
		},
	}
}

func runEval(opts *RootOptions, cmd *cobra.Command) error {
	spec, err := opts.scenarioOrDefault()
	if err != nil {
		return err
	}

	limits, err := (&BuildOptions{RootOptions: opts}).resolveLimits(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot resolve resource limits", err)
	}

	builder := nix.NewBuilder(opts.Runner)
	builder.BuildLog = cmd.ErrOrStderr()

	path, err := builder.Instantiate(cmd.Context(), nix.TestExpr(nix.ExprParams{
		TestsFile: opts.Config.TestsFile,
		Scenario:  spec,
		NumCPUs:   limits.NumCPUs,
		MemoryMiB: limits.MemoryMiB,
	}))
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("evaluating scenario %s", spec.Name), err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(CLIResponse{
			Status: "ok",
			Data:   map[string]string{"scenario": spec.Name, "drv_path": path},
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
