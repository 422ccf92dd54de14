package cli

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestUnknownFlag_ShowsHelpAndUsageError(t *testing.T) {
	t.Parallel()
	for _, sub := range []string{"export", "import", "validate", "serve", "init"} {
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs([]string{sub, "--unknown-flag"})

		err := root.Execute()
		if err == nil {
			t.Fatalf("%s: expected error for unknown flag", sub)
		}
		if _, ok := err.(usageError); !ok {
			t.Fatalf("%s: expected usage error, got %T: %v", sub, err, err)
		}
		if !errors.Is(err, ErrUsage) {
			t.Fatalf("%s: expected errors.Is(err, ErrUsage)", sub)
		}
		if !strings.Contains(err.Error(), "unknown flag") || !strings.Contains(err.Error(), "Usage:") {
			t.Fatalf("%s: unexpected error text: %v", sub, err)
		}
	}
}

func TestRoot_BadConfigIsUsageError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.yaml", "designer:\n  importer: magic\n")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", path, "validate", "whatever.yaml"})

	err := root.Execute()
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "designer.importer") {
		t.Fatalf("expected the bad key to be named, got %v", err)
	}
}
