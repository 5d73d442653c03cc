package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/fort-nix/nbtest/internal/nix"
	"github.com/fort-nix/nbtest/internal/resources"
	"github.com/fort-nix/nbtest/internal/scenario"
	"github.com/fort-nix/nbtest/internal/store"
)

// ciExtraQEMUOpts disables nested virtualization in the test VM's CPU.
// CI hosts frequently run inside VMs themselves, where exposing vmx
// makes the guest kernel hang at boot.
const ciExtraQEMUOpts = "-cpu host,-vmx"

// BuildOptions holds flags for the build-family commands.
type BuildOptions struct {
	*RootOptions

	// ciProfile selects CI-tuned resource limits and QEMU options.
	ciProfile bool
}

// BuildResult describes one built scenario.
type BuildResult struct {
	Scenario  string `json:"scenario"`
	StorePath string `json:"store_path"`
	OutLink   string `json:"out_link,omitempty"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "build",
		Short: "Build scenario VM tests (default command)",
		Long: `Build the VM test derivation for the selected scenario.

Building the derivation runs the whole test inside the Nix sandbox.
With --scenario, exactly that scenario is built; without it, the basic
scenario set is built instead.

Examples:
  nbtest build -s default
  nbtest -s netns -o result build
  nbtest build`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}
}

// NewBasicCommand creates the basic command.
func NewBasicCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "basic",
		Short: "Build the basic scenario set",
		Long: fmt.Sprintf(`Build the basic scenario set, one build per scenario, in order:
%v`, scenario.BasicSet()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return buildSet(opts, cmd, "basic", scenario.BasicSet())
		},
	}
}

// NewAllCommand creates the all command.
func NewAllCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	return &cobra.Command{
		Use:   "all",
		Short: "Build every scenario",
		Long: fmt.Sprintf(`Build all scenarios, one build per scenario, in order:
%v`, scenario.AllSet()),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return buildSet(opts, cmd, "all", scenario.AllSet())
		},
	}
}

// NewCICommand creates the ci command.
func NewCICommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts, ciProfile: true}

	return &cobra.Command{
		Use:   "ci",
		Short: "Build a scenario with CI-tuned resource limits",
		Long: `Build the selected scenario with the CI resource profile.

Memory is raised to 3072 MiB and then capped at the host's available
memory (rounded down to a 50 MiB multiple), so constrained CI hosts
don't over-allocate. Nested virtualization is disabled via QEMU's CPU
options. Without --scenario, the default scenario is built.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := opts.scenarioOrDefault()
			if err != nil {
				return err
			}
			return buildScenarios(opts, cmd, "ci", []scenario.Spec{spec}, true)
		},
	}
}

// runBuild implements the build command and the bare invocation: a set
// scenario builds exactly that scenario, otherwise the basic set runs.
func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	if opts.Scenario == "" {
		return buildSet(opts, cmd, "build", scenario.BasicSet())
	}

	spec, err := opts.Registry.Lookup(opts.Scenario)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot resolve scenario", err)
	}
	return buildScenarios(opts, cmd, "build", []scenario.Spec{spec}, true)
}

// buildSet resolves a fixed scenario sequence and builds it. Set builds
// never persist out-links.
func buildSet(opts *BuildOptions, cmd *cobra.Command, mode string, names []string) error {
	specs := make([]scenario.Spec, 0, len(names))
	for _, name := range names {
		spec, err := opts.Registry.Lookup(name)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot resolve scenario", err)
		}
		specs = append(specs, spec)
	}
	return buildScenarios(opts, cmd, mode, specs, false)
}

// buildScenarios builds the given scenarios strictly sequentially,
// failing fast on the first error. singleScenario enables the out-link;
// multi-scenario sets always build without a persisted link.
func buildScenarios(opts *BuildOptions, cmd *cobra.Command, mode string, specs []scenario.Spec, singleScenario bool) error {
	ctx := cmd.Context()
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	builder := nix.NewBuilder(opts.Runner)
	builder.BuildLog = cmd.ErrOrStderr()

	history := openHistory(opts.RootOptions)
	defer history.close()

	var results []BuildResult
	for _, spec := range specs {
		limits, err := opts.resolveLimits(spec)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot resolve resource limits", err)
		}

		params := nix.ExprParams{
			TestsFile: opts.Config.TestsFile,
			Scenario:  spec,
			NumCPUs:   limits.NumCPUs,
			MemoryMiB: limits.MemoryMiB,
		}
		if opts.ciProfile {
			params.ExtraQEMUOpts = ciExtraQEMUOpts
		}

		var outLink string
		if singleScenario && opts.OutLinkPrefix != "" {
			outLink = opts.OutLinkPrefix + "-" + spec.Name
		}

		formatter.VerboseLog("building scenario %s (cpus=%d, memory=%d MiB)",
			spec.Name, limits.NumCPUs, limits.MemoryMiB)

		started := time.Now()
		storePath, err := builder.Build(ctx, nix.TestExpr(params), outLink)
		history.record(ctx, spec.Name, mode, started, statusOf(err), storePath)
		if err != nil {
			if opts.Format != "json" {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", spec.Name)
			}
			return WrapExitError(ExitFailure, fmt.Sprintf("scenario %s", spec.Name), err)
		}

		if opts.Format != "json" {
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s\n", spec.Name, storePath)
		}
		results = append(results, BuildResult{
			Scenario:  spec.Name,
			StorePath: storePath,
			OutLink:   outLink,
		})
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: results})
	}
	return nil
}

// resolveLimits layers resource overrides: built-in defaults, config
// file, scenario definition, environment (strongest).
func (opts *BuildOptions) resolveLimits(spec scenario.Spec) (resources.Limits, error) {
	req := resources.Request{
		NumCPUs:   opts.Config.NumCPUs,
		MemoryMiB: opts.Config.MemoryMiB,
	}
	if spec.NumCPUs > 0 {
		req.NumCPUs = spec.NumCPUs
	}
	if spec.MemoryMiB > 0 {
		req.MemoryMiB = spec.MemoryMiB
	}

	if opts.ciProfile {
		return resources.ResolveCI(req)
	}
	return resources.Resolve(req)
}

func statusOf(err error) string {
	if err != nil {
		return store.StatusFailed
	}
	return store.StatusOK
}

// history wraps the optional run-history store. Recording is
// best-effort: failures are logged and otherwise ignored, since history
// must never fail a build.
type history struct {
	st *store.Store
}

func openHistory(opts *RootOptions) *history {
	if opts.Config.HistoryDB == "" {
		return &history{}
	}
	st, err := store.Open(opts.Config.HistoryDB)
	if err != nil {
		slog.Warn("run history disabled", "error", err)
		return &history{}
	}
	return &history{st: st}
}

func (h *history) record(ctx context.Context, scenarioName, mode string, started time.Time, status, outPath string) {
	if h.st == nil {
		return
	}
	err := h.st.RecordRun(ctx, store.Run{
		ID:        store.NewRunID(),
		Scenario:  scenarioName,
		Mode:      mode,
		StartedAt: started,
		Duration:  time.Since(started),
		Status:    status,
		OutPath:   outPath,
	})
	if err != nil {
		slog.Warn("failed to record run", "scenario", scenarioName, "error", err)
	}
}

func (h *history) close() {
	if h.st == nil {
		return
	}
	if err := h.st.Close(); err != nil {
		slog.Warn("failed to close history store", "error", err)
	}
}
