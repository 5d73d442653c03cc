package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fort-nix/nbtest/internal/nix"
	"github.com/fort-nix/nbtest/internal/vm"
)

// RunOptions holds flags for the run and debug commands.
type RunOptions struct {
	*RootOptions

	// debugShell switches the driver to an interactive Python REPL
	// with all nodes started.
	debugShell bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "run",
		Short: "Run a scenario's test driver outside the Nix sandbox",
		Long: `Build the test driver for the selected scenario and execute it
directly. Unlike build, the test runs outside the Nix sandbox, with the
VM console visible. Set ` + vm.EnvEnableNetwork + ` to give the VM
network access.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDriver(opts, cmd)
		},
	}
}

// NewDebugCommand creates the debug command.
func NewDebugCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts, debugShell: true}

	return &cobra.Command{
		Use:   "debug",
		Short: "Run a scenario's driver and drop into a Python REPL",
		Long: `Like run, but after the test script the driver starts all VM
nodes and opens an interactive Python REPL with the driver's globals,
for poking at machines with t.succeed() and friends.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDriver(opts, cmd)
		},
	}
}

// runDriver builds the scenario's driver derivation, assembles the test
// script and launches the driver in a throwaway run directory.
func runDriver(opts *RunOptions, cmd *cobra.Command) error {
	spec, err := opts.scenarioOrDefault()
	if err != nil {
		return err
	}

	limits, err := (&BuildOptions{RootOptions: opts.RootOptions}).resolveLimits(spec)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot resolve resource limits", err)
	}

	// Ctrl-C must tear down the VM and the run directory, not just
	// kill the driver.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runDir, err := vm.NewRunDir()
	if err != nil {
		return WrapExitError(ExitFailure, "cannot create run directory", err)
	}
	defer runDir.Close()

	builder := nix.NewBuilder(opts.Runner)
	builder.BuildLog = cmd.ErrOrStderr()

	params := nix.ExprParams{
		TestsFile: opts.Config.TestsFile,
		Scenario:  spec,
		NumCPUs:   limits.NumCPUs,
		MemoryMiB: limits.MemoryMiB,
	}

	mode := "run"
	if opts.debugShell {
		mode = "debug"
	}

	history := openHistory(opts.RootOptions)
	defer history.close()
	started := time.Now()

	driverLink := filepath.Join(runDir.Path, "driver")
	driverPath, err := builder.Build(ctx, nix.DriverExpr(params), driverLink)
	if err != nil {
		history.record(ctx, spec.Name, mode, started, statusOf(err), "")
		return WrapExitError(ExitFailure, fmt.Sprintf("building driver for scenario %s", spec.Name), err)
	}

	script, err := vm.ReadTestScript(driverPath)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot read test script", err)
	}
	if opts.debugShell {
		script = vm.DebugScript(script)
	}

	launchErr := vm.Launch(ctx, opts.Runner, vm.LaunchConfig{
		DriverDir:          driverPath,
		RunDir:             runDir.Path,
		TestScript:         script,
		NumCPUs:            limits.NumCPUs,
		MemoryMiB:          limits.MemoryMiB,
		ExtraQEMUOpts:      spec.ExtraQEMUOpts,
		EnableNetwork:      os.Getenv(vm.EnvEnableNetwork) != "",
		NixPath:            os.Getenv("NIX_PATH"),
		AmbientQEMUOpts:    os.Getenv("QEMU_OPTS"),
		AmbientQEMUNetOpts: os.Getenv("QEMU_NET_OPTS"),
	})
	history.record(ctx, spec.Name, mode, started, statusOf(launchErr), driverPath)
	if launchErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("scenario %s", spec.Name), launchErr)
	}
	return nil
}
