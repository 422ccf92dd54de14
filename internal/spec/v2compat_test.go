package spec

import (
	"strings"
	"testing"
)

func TestV2Compat_MultipleBodyMerged(t *testing.T) {
	t.Parallel()
	// Two body params (invalid v2) are merged into a single body schema.
	in := []byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /x:
    post:
      parameters:
      - in: body
        name: a
        required: true
        schema: { type: string }
      - in: body
        name: b
        schema: { type: integer }
      - in: query
        name: q
        type: string
      responses: { '200': { description: ok } }
`)
	out, changed, err := preprocessV2ForCompatibility(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !changed {
		t.Fatalf("expected changes")
	}
	s := string(out)
	if !strings.Contains(s, "in: body") || !strings.Contains(s, "name: body") {
		t.Fatalf("expected merged single body parameter, got:\n%s", s)
	}
	if strings.Count(s, "in: body") != 1 {
		t.Fatalf("expected exactly one body parameter, got:\n%s", s)
	}
	if !strings.Contains(s, "name: q") {
		t.Fatalf("expected query parameter kept, got:\n%s", s)
	}
	if strings.Index(s, "name: body") > strings.Index(s, "name: q") {
		t.Fatalf("expected merged body first, got:\n%s", s)
	}
}

func TestV2Compat_BodyAndFormData_ToFormData(t *testing.T) {
	t.Parallel()
	// Mixing body + formData (file) converts body to formData and adds consumes multipart.
	in := []byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /upload:
    post:
      parameters:
      - in: body
        name: desc
        schema: { type: string }
      - in: formData
        name: file
        type: file
        required: true
      responses: { '200': { description: ok } }
`)
	out, changed, err := preprocessV2ForCompatibility(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if !changed {
		t.Fatalf("expected changes")
	}
	s := string(out)
	if strings.Contains(s, "in: body") {
		t.Fatalf("expected no body params after conversion to formData, got:\n%s", s)
	}
	if !strings.Contains(s, "multipart/form-data") {
		t.Fatalf("expected consumes multipart/form-data, got:\n%s", s)
	}
}

func TestV2Compat_UnchangedKeepsBytes(t *testing.T) {
	t.Parallel()
	in := []byte(`swagger: "2.0"
info: { title: t, version: "1.0.0" }
paths:
  /b:
    get:
      responses: { '200': { description: ok } }
  /a:
    post:
      parameters:
      - in: body
        name: only
        schema: { type: string }
      responses: { '200': { description: ok } }
`)
	out, changed, err := preprocessV2ForCompatibility(in)
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if changed {
		t.Fatalf("expected no changes for a single body parameter")
	}
	if string(out) != string(in) {
		t.Fatalf("expected original bytes back")
	}
}
