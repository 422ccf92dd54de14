package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platformcommons/apidesigner/internal/config"
)

// loadConfig reads the file named by --config over the defaults and
// environment. Problems with the file are usage errors.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, newUsageError(err.Error())
	}
	return cfg, nil
}

// writeFileAtomic writes data next to path and renames it into place. An
// existing regular file is only replaced when force is set.
func writeFileAtomic(cmdName, path string, data []byte, force bool) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%s: resolve output path: %w", cmdName, err)
	}
	if st, err := os.Stat(absPath); err == nil && !force {
		if st.Mode().IsRegular() {
			return "", newUsageError(fmt.Sprintf("%s: %q already exists (use --force to overwrite)", cmdName, absPath))
		}
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return "", newUsageError(fmt.Sprintf("%s: cannot create parent directory: %v", cmdName, err))
	}

	tmp := absPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", newUsageError(fmt.Sprintf("%s: cannot write temp file: %v\nHint: choose a different --out or check directory permissions.", cmdName, err))
	}
	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return "", newUsageError(fmt.Sprintf("%s: cannot place file at %s: %v", cmdName, absPath, err))
	}
	return absPath, nil
}
