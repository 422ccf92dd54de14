package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/platformcommons/apidesigner/internal/spec"
)

const minimalSpecYAML = "" +
	"openapi: 3.0.0\n" +
	"info:\n" +
	"  title: Test API\n" +
	"  version: '1.0.0'\n" +
	"paths:\n" +
	"  /hello:\n" +
	"    get:\n" +
	"      summary: Hello\n" +
	"      parameters:\n" +
	"        - name: limit\n" +
	"          in: query\n" +
	"          schema:\n" +
	"            type: integer\n" +
	"      responses:\n" +
	"        '200':\n" +
	"          description: ok\n"

// captureStdout swaps os.Stdout while fn runs. Callers must not be parallel.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()
	fn()
	_ = w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeProject(t *testing.T, dir string, p *spec.Project) string {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal project: %v", err)
	}
	return writeFile(t, dir, "design.json", string(data))
}

func pingProject() *spec.Project {
	p := spec.NewProject()
	p.Name = "Ping API"
	p.Servers[0].URL = "https://sandbox.example.com"
	ep := spec.NewEndpoint()
	ep.Path = "/ping"
	ep.Summary = "Ping"
	p.Endpoints = append(p.Endpoints, ep)
	return p
}
