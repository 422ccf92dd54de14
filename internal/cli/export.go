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

	"github.com/platformcommons/apidesigner/internal/designer"
	"github.com/platformcommons/apidesigner/internal/spec"
)

// ExportConfig captures the inputs of the export command after merging the
// config file with flag overrides.
type ExportConfig struct {
	ProjectPath string
	Format      spec.Format
	Out         string
	Validate    bool
	Force       bool
	Verbose     bool
	Logger      *slog.Logger
}

var exportRunner = runExport

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a design project as an OpenAPI 3.1 document",
		Long: "Export a design project (JSON, as written by \"apidesigner import\") as an OpenAPI 3.1 " +
			"YAML or JSON document.",
		Example: strings.TrimSpace(`  apidesigner export --project design.json
  apidesigner export --project design.json --format json --out - --validate`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveExportConfig(cmd)
			if err != nil {
				return err
			}
			return exportRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("project", "", "Path to the design project JSON file")
	flags.String("format", "", "Output format (yaml|json); defaults to designer.format")
	flags.String("out", "", "Output file, or - for stdout (derived from the project name when omitted)")
	flags.Bool("validate", false, "Validate the exported document before writing it")
	flags.Bool("force", false, "Overwrite the output file when it exists")

	return cmd
}

func resolveExportConfig(cmd *cobra.Command) (*ExportConfig, error) {
	settings, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	cfg := &ExportConfig{Format: settings.ExportFormat()}
	if err := applyExportFlagOverrides(cmd.Flags(), cfg); err != nil {
		return nil, err
	}
	cfg.Logger = newLogger(os.Stderr, settings.Log.Level, settings.Log.Format, cfg.Verbose)
	if cfg.ProjectPath == "" {
		return nil, newUsageError("export: --project is required")
	}
	return cfg, nil
}

func applyExportFlagOverrides(flags *pflag.FlagSet, cfg *ExportConfig) error {
	if flags.Changed("project") {
		value, err := flags.GetString("project")
		if err != nil {
			return err
		}
		cfg.ProjectPath = strings.TrimSpace(value)
	}
	if flags.Changed("format") {
		value, err := flags.GetString("format")
		if err != nil {
			return err
		}
		f, err := spec.ParseFormat(value)
		if err != nil {
			return newUsageError(fmt.Sprintf("export: unsupported --format %q (allowed: yaml, json)", value))
		}
		cfg.Format = f
	}
	if flags.Changed("out") {
		value, err := flags.GetString("out")
		if err != nil {
			return err
		}
		cfg.Out = strings.TrimSpace(value)
	}
	if flags.Changed("validate") {
		value, err := flags.GetBool("validate")
		if err != nil {
			return err
		}
		cfg.Validate = value
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

func runExport(ctx context.Context, cfg *ExportConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	p, err := readProject(cfg.ProjectPath)
	if err != nil {
		return err
	}
	d := designer.New(designer.WithProject(p), designer.WithLogger(logger))
	exp, err := d.ExportCurrentSpec(cfg.Format)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if cfg.Validate {
		if _, err := spec.ValidateDocument(ctx, exp.Content); err != nil {
			return specUsageError(err)
		}
		logger.Debug("exported document is valid", "format", exp.Format)
	}

	out := cfg.Out
	if out == "" {
		out = exp.FileName
	}
	if out == "-" {
		_, err := os.Stdout.Write(exp.Content)
		return err
	}
	absPath, err := writeFileAtomic("export", out, exp.Content, cfg.Force)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote %s document to %s\n", exp.Format, absPath)
	return nil
}

func readProject(path string) (*spec.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newUsageError(fmt.Sprintf("export: cannot read project %s: %v", path, err))
	}
	p := spec.NewProject()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, newUsageError(fmt.Sprintf("export: %s is not a design project: %v", path, err))
	}
	return p, nil
}
