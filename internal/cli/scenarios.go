package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ScenarioInfo is the JSON shape for one scenario listing entry.
type ScenarioInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List known scenarios",
		Long: `List the built-in scenarios plus any declared in the configured
scenarios directory, with their descriptions.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, cmd)
		},
	}
}

func runScenarios(opts *RootOptions, cmd *cobra.Command) error {
	var infos []ScenarioInfo
	for _, name := range opts.Registry.Names() {
		spec, err := opts.Registry.Lookup(name)
		if err != nil {
			return WrapExitError(ExitFailure, "inconsistent scenario registry", err)
		}
		infos = append(infos, ScenarioInfo{Name: spec.Name, Description: spec.Description})
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(CLIResponse{Status: "ok", Data: infos})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\n", info.Name, info.Description)
	}
	return w.Flush()
}
