package main

import (
	"os"
	"testing"
)

// TestE2EDemoScript exercises the full pipeline: Lisp source -> engine ->
// scene -> renderable build -> flat mesh payloads. This is the same path
// the CLI takes.
func TestE2EDemoScript(t *testing.T) {
	app := NewApp()

	source, err := os.ReadFile("examples/demo.pmesh")
	if err != nil {
		t.Fatalf("failed to read demo.pmesh: %v", err)
	}

	result := app.Evaluate(string(source))

	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error (line %d): %s", e.Line, e.Message)
		}
		t.FailNow()
	}

	if len(result.Meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(result.Meshes))
	}
	wantNames := []string{"straddler", "plate"}
	for i, m := range result.Meshes {
		if m.Name != wantNames[i] {
			t.Errorf("mesh %d: name = %q, want %q", i, m.Name, wantNames[i])
		}
		if len(m.Vertices) == 0 {
			t.Errorf("mesh %q: no vertices", m.Name)
		}
		if len(m.Normals) != len(m.Vertices) {
			t.Errorf("mesh %q: %d normal floats for %d vertex floats",
				m.Name, len(m.Normals), len(m.Vertices))
		}
		if len(m.Indices) == 0 {
			t.Errorf("mesh %q: no indices", m.Name)
		}
		if m.Color == "" {
			t.Errorf("mesh %q: no color assigned", m.Name)
		}
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp()
	result := app.Evaluate("")

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes for empty source, got %d", len(result.Meshes))
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp()
	result := app.Evaluate(`(defmesh "broken"`)

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for unbalanced input")
	}
	if len(result.Meshes) != 0 {
		t.Errorf("expected 0 meshes on error, got %d", len(result.Meshes))
	}
}
