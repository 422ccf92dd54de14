package spec

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeSpec(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_BlocksFileURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "file:///etc/hosts")
	if err == nil {
		t.Fatalf("expected error for file:// URL")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != InputError {
		t.Fatalf("expected InputError, got %v", se.Code)
	}
}

func TestLoad_UnsupportedScheme(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, err := Load(ctx, "ftp://example.com/spec.yaml")
	if err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError, got %v (%T)", err, err)
	}
}

func TestLoad_NetworkError(t *testing.T) {
	t.Parallel()
	// Unused port to provoke a quick network failure.
	url := "http://127.0.0.1:1/spec.yaml"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Load(ctx, url, WithHTTPTimeout(200*time.Millisecond), WithMaxRetries(2), WithBackoffBase(10*time.Millisecond))
	if err == nil {
		t.Fatalf("expected network error")
	}
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v (%T)", err, err)
	}
}

func TestReadInput_RetriesTransientFailures(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("openapi: 3.0.0\n"))
	}))
	defer srv.Close()

	raw, location, err := ReadInput(context.Background(), srv.URL+"/spec.yaml", WithMaxRetries(3), WithBackoffBase(time.Millisecond))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != "openapi: 3.0.0\n" || location != srv.URL+"/spec.yaml" {
		t.Fatalf("unexpected result %q from %q", raw, location)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestReadInput_ClientErrorNotRetried(t *testing.T) {
	t.Parallel()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, _, err := ReadInput(context.Background(), srv.URL, WithMaxRetries(5), WithBackoffBase(time.Millisecond))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != NetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestReadInput_MissingFile(t *testing.T) {
	t.Parallel()
	_, _, err := ReadInput(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	var se *SpecError
	if !errors.As(err, &se) || se.Code != InputError || se.Location == "" {
		t.Fatalf("expected InputError with location, got %v", err)
	}
	if _, _, err := ReadInput(context.Background(), "  "); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestLoad_V3_InvalidSpec(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "bad.yaml", `
openapi: 3.0.0
info:
  title: Bad
  version: "1.0.0"
paths:
  "/pet":
    get:
      responses: {}
`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatalf("expected validation error for incomplete responses")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != ValidationError && se.Code != ParseError { // parser version differences
		t.Fatalf("expected ValidationError/ParseError, got %v", se.Code)
	}
	if se.Location == "" {
		t.Fatalf("expected location to be set")
	}
}

func TestLoad_V31ExportAccepted(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "openapi.yaml", `
openapi: 3.1.1
jsonSchemaDialect: https://json-schema.org/draft/2020-12/schema
info:
  title: Exported
  version: "1.0"
paths:
  /count:
    get:
      parameters:
        - name: n
          in: query
          schema:
            type: integer
            exclusiveMinimum: 0
      responses:
        "200":
          description: ok
`)
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc.Info.Title != "Exported" {
		t.Fatalf("unexpected title %q", doc.Info.Title)
	}
}

func TestLoad_V2_Conversion_Success(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger.yaml", `
swagger: "2.0"
info:
  title: Sample
  version: "1.0.0"
paths:
  "/hello":
    get:
      responses:
        "200":
          description: ok
`)
	doc, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if doc == nil {
		t.Fatalf("expected doc")
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Fatalf("expected OpenAPI v3, got %q", doc.OpenAPI)
	}
}

func TestLoad_V2_Conversion_Failure(t *testing.T) {
	t.Parallel()
	path := writeSpec(t, "swagger-bad.yaml", `
swagger: "2.0"
paths: {}
`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Fatalf("expected conversion error")
	}
	var se *SpecError
	if !errors.As(err, &se) {
		t.Fatalf("expected SpecError, got %T", err)
	}
	if se.Code != ConversionError && se.Code != ValidationError && se.Code != ParseError {
		t.Fatalf("expected ConversionError/ValidationError/ParseError, got %v", se.Code)
	}
}

func TestValidateDocument(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, err := ValidateDocument(ctx, []byte("title: nothing\n")); err == nil {
		t.Fatalf("expected version error")
	}
	var se *SpecError
	_, err := ValidateDocument(ctx, nil)
	if !errors.As(err, &se) || se.Code != InputError {
		t.Fatalf("expected InputError for empty document, got %v", err)
	}
	out, err := Export(usersProject(), FormatJSON)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := ValidateDocument(ctx, out); err != nil {
		t.Fatalf("expected json export to validate: %v", err)
	}
	// An unnamed project has no info.title.
	out, err = Export(NewProject(), FormatYAML)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := ValidateDocument(ctx, out); !errors.As(err, &se) || se.Code != ValidationError {
		t.Fatalf("expected ValidationError for missing title, got %v", err)
	}
}
