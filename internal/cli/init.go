package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigName = "apidesigner.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool
	Verbose    bool
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample apidesigner configuration file",
		Long:  "Scaffold a commented apidesigner configuration file that documents every setting and its default.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				return err
			}
			return initRunner(cmd.Context(), &InitConfig{
				OutputPath: out,
				Force:      force,
				Verbose:    verbose,
			})
		},
	}

	cmd.Flags().String("out", defaultConfigName, "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = defaultConfigName
	}
	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	absPath, err := writeFileAtomic("init", out, []byte(content), cfg.Force)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# apidesigner configuration (YAML)
# All fields are optional. Command-line flags override config values and
# APIDESIGNER_* environment variables override both (e.g. APIDESIGNER_SERVER_ADDR).

server:
  # Listen address for "apidesigner serve".
  addr: ":8080"
  # Mount pprof handlers under /debug/pprof.
  debug: false
  # Maximum number of concurrent design sessions (0 means unlimited).
  maxSessions: 100
  # Largest accepted request body in bytes (0 means unlimited).
  maxBodyBytes: 1048576
  # How long serve waits for in-flight requests on shutdown.
  shutdownTimeout: 10s

log:
  # debug|info|warn|error
  level: info
  # text|json
  format: text

designer:
  # Importer used for documents and preview edits: structured|heuristic
  importer: structured
  # Export format when none is requested: yaml|json
  format: yaml

loader:
  # Per-request timeout when fetching documents over http/https.
  httpTimeout: 10s
  # Attempts per fetch, including the first.
  maxRetries: 3
  # Base delay of the exponential backoff between attempts.
  backoffBase: 200ms
`
