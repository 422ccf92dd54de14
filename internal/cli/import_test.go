package cli

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/platformcommons/apidesigner/internal/spec"
)

func TestImport_WritesProject(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "openapi.yaml", minimalSpecYAML)
	out := filepath.Join(dir, "design.json")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"import", "--input", input, "--out", out})

	stdout := captureStdout(t, func() {
		if err := root.Execute(); err != nil {
			t.Fatalf("import: %v", err)
		}
	})
	if !strings.Contains(stdout, "Wrote design project to") {
		t.Fatalf("unexpected output: %s", stdout)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read project: %v", err)
	}
	var p spec.Project
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if p.Name != "Test API" || len(p.Endpoints) != 1 {
		t.Fatalf("unexpected project: %+v", p)
	}
	ep := p.Endpoints[0]
	if ep.Path != "/hello" || ep.Method != spec.GET || len(ep.Parameters) != 1 || ep.Parameters[0].Name != "limit" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestImport_ThenExportRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "openapi.yaml", minimalSpecYAML)
	project := filepath.Join(dir, "design.json")
	exported := filepath.Join(dir, "test-api.yaml")

	err := runImport(context.Background(), &ImportConfig{Input: input, Importer: spec.ImporterStructured, Out: project})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	captureStdout(t, func() {
		err = runExport(context.Background(), &ExportConfig{ProjectPath: project, Format: spec.FormatYAML, Out: exported, Validate: true})
	})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	for _, want := range []string{"title: \"Test API\"", "/hello:", "name: \"limit\"", "type: \"integer\""} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("export missing %q:\n%s", want, data)
		}
	}
}

func TestImport_ParseErrorIsUsageError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	input := writeFile(t, dir, "broken.yaml", "openapi: [unterminated\n")

	err := runImport(context.Background(), &ImportConfig{Input: input, Importer: spec.ImporterStructured, Out: filepath.Join(dir, "out.json")})
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "spec:") {
		t.Fatalf("expected spec error text, got %v", err)
	}
}

func TestImport_ResolvesImporterFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "apidesigner.yaml", "designer:\n  importer: heuristic\nloader:\n  maxRetries: 5\n")

	var got *ImportConfig
	old := importRunner
	importRunner = func(ctx context.Context, cfg *ImportConfig) error {
		got = cfg
		return nil
	}
	t.Cleanup(func() { importRunner = old })

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", cfgPath, "import", "--input", "spec.yaml"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got.Importer != spec.ImporterHeuristic || got.Out != "design.json" || len(got.LoaderOptions) == 0 {
		t.Fatalf("unexpected config: %+v", got)
	}

	root = NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", cfgPath, "import", "--input", "spec.yaml", "--importer", "bogus"})
	if err := root.Execute(); !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error for bad importer, got %v", err)
	}
}
