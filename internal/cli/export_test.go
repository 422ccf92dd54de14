package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/platformcommons/apidesigner/internal/spec"
)

func TestExport_WritesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	project := writeProject(t, dir, pingProject())
	out := filepath.Join(dir, "ping.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"export", "--project", project, "--out", out, "--validate"})

	stdout := captureStdout(t, func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("export: %v", err)
		}
	})
	if !strings.Contains(stdout, "Wrote yaml document to") {
		t.Fatalf("unexpected output: %s", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	s := string(data)
	if !strings.HasPrefix(s, "openapi: \"3.1.1\"") {
		t.Fatalf("unexpected document: %s", s)
	}
	if !strings.Contains(s, "/ping:") || !strings.Contains(s, "https://sandbox.example.com") {
		t.Fatalf("missing path or server: %s", s)
	}
	if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestExport_JSONToStdout(t *testing.T) {
	dir := t.TempDir()
	project := writeProject(t, dir, pingProject())

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"export", "--project", project, "--format", "json", "--out", "-"})

	stdout := captureStdout(t, func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("export: %v", err)
		}
	})
	if !strings.HasPrefix(strings.TrimSpace(stdout), "{") || !strings.Contains(stdout, `"openapi": "3.1.1"`) {
		t.Fatalf("expected JSON document, got: %s", stdout)
	}
}

func TestExport_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	project := writeProject(t, dir, pingProject())
	out := writeFile(t, dir, "ping.yaml", "keep")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"export", "--project", project, "--out", out})

	if err := root.Execute(); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	data, _ := os.ReadFile(out)
	if string(data) != "keep" {
		t.Fatalf("existing file was overwritten")
	}
}

func TestExport_ValidateRejectsUntitledProject(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	project := writeProject(t, dir, spec.NewProject())

	err := runExport(context.Background(), &ExportConfig{
		ProjectPath: project,
		Format:      spec.FormatYAML,
		Out:         filepath.Join(dir, "out.yaml"),
		Validate:    true,
	})
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.yaml")); !os.IsNotExist(statErr) {
		t.Fatalf("invalid document should not be written")
	}
}

func TestExport_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "apidesigner.yaml", "designer:\n  format: json\n")

	var got *ExportConfig
	old := exportRunner
	exportRunner = func(ctx context.Context, cfg *ExportConfig) error {
		got = cfg
		return nil
	}
	t.Cleanup(func() { exportRunner = old })

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", cfgPath, "export", "--project", "p.json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got == nil || got.Format != spec.FormatJSON || got.Out != "" {
		t.Fatalf("expected config format json and derived out, got %+v", got)
	}

	root = NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", cfgPath, "export", "--project", "p.json", "--format", "yml", "--force"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Format != spec.FormatYAML || !got.Force {
		t.Fatalf("expected flag overrides, got %+v", got)
	}
}

func TestExport_Usage(t *testing.T) {
	t.Parallel()
	cases := [][]string{
		{"export"},
		{"export", "--project", "p.json", "--format", "xml"},
	}
	for _, args := range cases {
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(args)
		if err := root.Execute(); !errors.Is(err, ErrUsage) {
			t.Fatalf("%v: expected usage error, got %v", args, err)
		}
	}
}
