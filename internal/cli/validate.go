package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platformcommons/apidesigner/internal/spec"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path-or-url>",
		Short: "Load and validate an OpenAPI/Swagger document",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return newUsageError(fmt.Sprintf("validate: expected exactly one document, got %d\n\n%s", len(args), cmd.UsageString()))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := spec.Load(cmd.Context(), strings.TrimSpace(args[0]), settings.LoaderOptions()...)
			if err != nil {
				return specUsageError(err)
			}
			title, version := "", ""
			if doc.Info != nil {
				title, version = doc.Info.Title, doc.Info.Version
			}
			fmt.Fprintf(os.Stdout, "OK: %s (version %s), %d paths\n", title, version, len(doc.Paths))
			return nil
		},
	}
	return cmd
}
