package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Execute runs the apidesigner CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd constructs the root command so tests can exercise the CLI easily.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "apidesigner",
		Short:         "Design, import and export OpenAPI documents",
		Long:          "apidesigner edits API designs as project files, exports them as OpenAPI 3.1 YAML or JSON, imports existing OpenAPI/Swagger documents and serves the designer over HTTP.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	// Convert Cobra flag errors (like unknown flags) into friendly usage errors
	// that also show the command's help text.
	cmd.SetFlagErrorFunc(flagUsageError)

	cmd.PersistentFlags().StringP("config", "c", "", "Config file path (YAML or JSON)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging output")

	for _, sub := range []*cobra.Command{
		newInitCmd(),
		newExportCmd(),
		newImportCmd(),
		newValidateCmd(),
		newServeCmd(),
	} {
		sub.SetFlagErrorFunc(flagUsageError)
		cmd.AddCommand(sub)
	}

	return cmd
}

func flagUsageError(c *cobra.Command, err error) error {
	return newUsageError(fmt.Sprintf("%v\n\n%s", err, c.UsageString()))
}
