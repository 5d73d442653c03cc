// Package cli wires the orchestrator's commands: building scenarios,
// debugging them interactively, delegating to the container script, and
// inspecting expressions and run history.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fort-nix/nbtest/internal/config"
	"github.com/fort-nix/nbtest/internal/nix"
	"github.com/fort-nix/nbtest/internal/scenario"
)

// RootOptions holds global flags and shared state for all commands.
type RootOptions struct {
	// Version is the build version shown by --version.
	Version string

	Scenario      string
	OutLinkPrefix string
	ConfigPath    string
	Verbose       bool
	Format        string // "json" | "text"

	// Config and Registry are populated before any command runs.
	Config   config.Config
	Registry *scenario.Registry

	// Runner allows overriding the command runner (for testing).
	// If nil, defaults to nix.ExecRunner.
	Runner nix.Runner
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command. Running it without a
// subcommand behaves exactly like the build command.
func NewRootCommand(opts *RootOptions) *cobra.Command {
	if opts == nil {
		opts = &RootOptions{}
	}

	cmd := &cobra.Command{
		Use:   "nbtest",
		Short: "Build and run NixOS VM integration tests for the service modules",
		Long: `nbtest builds and runs the NixOS VM integration tests.

Without a subcommand it behaves like build: the selected scenario is
built as a VM test derivation, or the basic scenario set when no
scenario is given. Heavy lifting is delegated to nix-build and the
NixOS test driver; nbtest only orchestrates them.`,
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(&BuildOptions{RootOptions: opts}, cmd)
		},
	}

	// Flag parse errors (e.g. --scenario without a value) are usage
	// errors: print the usage text and exit 2.
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintln(c.ErrOrStderr(), c.UsageString())
		return WrapExitError(ExitCommandError, "usage error", err)
	})

	cmd.PersistentFlags().StringVarP(&opts.Scenario, "scenario", "s", "", "scenario to operate on")
	cmd.PersistentFlags().StringVarP(&opts.OutLinkPrefix, "out-link-prefix", "o", "", "prefix for result symlinks (single-scenario builds only)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultPath, "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewBasicCommand(opts))
	cmd.AddCommand(NewAllCommand(opts))
	cmd.AddCommand(NewCICommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDebugCommand(opts))
	cmd.AddCommand(NewContainerCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewScenariosCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setup validates global flags and loads config and scenario
// definitions before any command body runs.
func (opts *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(opts.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	explicit := cmd.Flags().Changed("config")
	cfg, err := config.Load(opts.ConfigPath, explicit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	opts.Config = cfg

	if opts.OutLinkPrefix == "" {
		opts.OutLinkPrefix = cfg.OutLinkPrefix
	}

	opts.Registry = scenario.NewRegistry()
	if cfg.ScenariosDir != "" {
		specs, err := scenario.LoadDir(cfg.ScenariosDir)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario definitions", err)
		}
		opts.Registry.Add(specs)
		slog.Debug("loaded scenario definitions", "dir", cfg.ScenariosDir, "count", len(specs))
	}

	if opts.Runner == nil {
		opts.Runner = nix.ExecRunner{}
	}
	return nil
}

// scenarioOrDefault resolves the target scenario for commands that
// always operate on a single scenario: an unset scenario falls back to
// "default".
func (opts *RootOptions) scenarioOrDefault() (scenario.Spec, error) {
	name := opts.Scenario
	if name == "" {
		name = scenario.DefaultName
	}
	spec, err := opts.Registry.Lookup(name)
	if err != nil {
		return scenario.Spec{}, WrapExitError(ExitCommandError, "cannot resolve scenario", err)
	}
	return spec, nil
}

// Execute runs the root command and exits the process with the error's
// exit code. This is called by main.main().
func Execute(version string) {
	cmd := NewRootCommand(&RootOptions{Version: version})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(GetExitCode(err))
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
