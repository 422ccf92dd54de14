package spec

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// HeuristicImporter recovers a minimal project from document text by pattern
// matching, without parsing it. Only the title, description, version and the
// (path, method, summary) of each operation survive. It reads YAML laid out
// the way Export writes it; other layouts may yield fewer endpoints.
//
// Methods are collected across the whole paths block rather than per path,
// so every discovered path receives every discovered method.
type HeuristicImporter struct{}

const (
	heuristicDefaultName        = "Imported API"
	heuristicDefaultDescription = "Imported from YAML"
	heuristicDefaultVersion     = "1.0.0"
	heuristicProjectID          = "1"
)

var (
	titleRe       = regexp.MustCompile(`title:\s*["']?([^"'\n]+)["']?`)
	descriptionRe = regexp.MustCompile(`description:\s*["']?([^"'\n]+)["']?`)
	versionRe     = regexp.MustCompile(`version:\s*["']?([^"'\n]+)["']?`)
	pathsStartRe  = regexp.MustCompile(`paths:\s*\n`)
	topLevelKeyRe = regexp.MustCompile(`\n\w`)
	pathKeyRe     = regexp.MustCompile(`(?m)^\s{2}(/[^:\n]+):`)
	methodKeyRe   = regexp.MustCompile(`(?i)\s{4}(get|post|put|delete|patch):`)
	nonIdentRe    = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

func (HeuristicImporter) Name() string { return ImporterHeuristic }

// Import returns a ParseError only for input that is not UTF-8. Empty text
// yields the default project.
func (HeuristicImporter) Import(data []byte) (*ImportResult, error) {
	if !utf8.Valid(data) {
		return nil, &SpecError{Code: ParseError, Message: "import: document is not valid UTF-8"}
	}
	text := string(data)
	report := ImportReport{Importer: ImporterHeuristic}

	p := &Project{
		ID:          heuristicProjectID,
		Name:        firstMatch(titleRe, text, heuristicDefaultName),
		Description: firstMatch(descriptionRe, text, heuristicDefaultDescription),
		Version:     firstMatch(versionRe, text, heuristicDefaultVersion),
		Servers:     []Server{},
		Endpoints:   []Endpoint{},
		Schemas:     []Schema{},
	}
	report.recovered("#/info")

	section, ok := pathsSection(text)
	if !ok {
		return &ImportResult{Project: p, Report: report}, nil
	}

	var methods []HttpMethod
	seen := map[HttpMethod]bool{}
	for _, m := range methodKeyRe.FindAllStringSubmatch(section, -1) {
		method := HttpMethod(strings.ToUpper(m[1]))
		if !seen[method] {
			seen[method] = true
			methods = append(methods, method)
		}
	}

	for _, pm := range pathKeyRe.FindAllStringSubmatch(section, -1) {
		path := pm[1]
		for _, method := range methods {
			p.Endpoints = append(p.Endpoints, Endpoint{
				ID:         nonIdentRe.ReplaceAllString(path+"-"+string(method), "-"),
				Path:       path,
				Method:     method,
				Summary:    heuristicSummary(section, method, path),
				Parameters: []Parameter{},
				Responses: map[string]Response{
					"200": {Description: "Success"},
				},
			})
			report.recovered(operationPointer(path, method))
		}
	}
	return &ImportResult{Project: p, Report: report}, nil
}

func firstMatch(re *regexp.Regexp, text, fallback string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return fallback
}

// pathsSection returns the text after "paths:" up to the next unindented key.
func pathsSection(text string) (string, bool) {
	loc := pathsStartRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := text[loc[1]:]
	if end := topLevelKeyRe.FindStringIndex(rest); end != nil {
		rest = rest[:end[0]]
	}
	return rest, true
}

// heuristicSummary takes the first summary that follows the method keyword
// anywhere in the section, which may belong to another path.
func heuristicSummary(section string, method HttpMethod, path string) string {
	re := regexp.MustCompile(`(?i)` + strings.ToLower(string(method)) + `:[\s\S]*?summary:\s*["']?([^"'\n]+)["']?`)
	if m := re.FindStringSubmatch(section); m != nil {
		return m[1]
	}
	return fmt.Sprintf("%s %s", method, path)
}
