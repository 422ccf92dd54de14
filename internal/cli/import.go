package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/platformcommons/apidesigner/internal/spec"
)

// ImportConfig captures the inputs of the import command.
type ImportConfig struct {
	Input         string
	Importer      string
	Out           string
	Force         bool
	Verbose       bool
	LoaderOptions []spec.Option
	Logger        *slog.Logger
}

var importRunner = runImport

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an OpenAPI/Swagger document into a design project",
		Long: "Import an OpenAPI 3.x or Swagger 2.0 document from a file or http/https URL and write " +
			"the recovered design project as JSON. Items the importer cannot keep are listed.",
		Example: strings.TrimSpace(`  apidesigner import --input openapi.yaml --out design.json
  apidesigner import --input https://example.com/openapi.json --importer heuristic`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveImportConfig(cmd)
			if err != nil {
				return err
			}
			return importRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the OpenAPI/Swagger document")
	flags.String("importer", "", "Importer to use (structured|heuristic); defaults to designer.importer")
	flags.String("out", "design.json", "Where to write the design project, or - for stdout")
	flags.Bool("force", false, "Overwrite the output file when it exists")

	return cmd
}

func resolveImportConfig(cmd *cobra.Command) (*ImportConfig, error) {
	settings, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg := &ImportConfig{
		Importer:      settings.Designer.Importer,
		Out:           "design.json",
		LoaderOptions: settings.LoaderOptions(),
	}
	if err := applyImportFlagOverrides(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	cfg.Logger = newLogger(os.Stderr, settings.Log.Level, settings.Log.Format, cfg.Verbose)
	if cfg.Input == "" {
		return nil, newUsageError("import: --input is required")
	}
	if _, err := spec.NewImporter(cfg.Importer); err != nil {
		return nil, newUsageError(fmt.Sprintf("import: unsupported --importer %q (allowed: %s, %s)", cfg.Importer, spec.ImporterStructured, spec.ImporterHeuristic))
	}
	return cfg, nil
}

func applyImportFlagOverrides(flags *pflag.FlagSet, cfg *ImportConfig) error {
	if flags.Changed("input") {
		value, err := flags.GetString("input")
		if err != nil {
			return err
		}
		cfg.Input = strings.TrimSpace(value)
	}
	if flags.Changed("importer") {
		value, err := flags.GetString("importer")
		if err != nil {
			return err
		}
		cfg.Importer = strings.ToLower(strings.TrimSpace(value))
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("force") {
		value, err := flags.GetBool("force")
		if err != nil {
			return err
		}
		cfg.Force = value
	}
	value, err := flags.GetBool("verbose")
	if err != nil {
		return err
	}
	cfg.Verbose = value
	return nil
}

func runImport(ctx context.Context, cfg *ImportConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	data, location, err := spec.ReadInput(ctx, cfg.Input, cfg.LoaderOptions...)
	if err != nil {
		return specUsageError(err)
	}
	logger.Debug("document read", "location", location, "bytes", len(data))

	imp, err := spec.NewImporter(cfg.Importer)
	if err != nil {
		return specUsageError(err)
	}
	res, err := imp.Import(data)
	if err != nil {
		return specUsageError(err)
	}

	out, err := json.MarshalIndent(res.Project, "", "  ")
	if err != nil {
		return fmt.Errorf("import: encode project: %w", err)
	}
	out = append(out, '\n')

	if cfg.Out == "-" {
		if _, err := os.Stdout.Write(out); err != nil {
			return err
		}
	} else {
		absPath, err := writeFileAtomic("import", cfg.Out, out, cfg.Force)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote design project to %s\n", absPath)
	}

	fmt.Fprintf(os.Stderr, "%s\n", res.Report.Summary())
	for _, s := range res.Report.Skipped {
		fmt.Fprintf(os.Stderr, "  skipped %s: %s\n", s.Pointer, s.Reason)
	}
	logger.Info("document imported", "location", location, "summary", res.Report.Summary())
	return nil
}
