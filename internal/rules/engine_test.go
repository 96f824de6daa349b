package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEngineLiteralAndRegexRules(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{
		{Match: "jarvis", Replace: "J.A.R.V.I.S."},
		{Match: `\bdark\s*mode\b`, Replace: "dark theme", Regex: true},
	}, 30)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	output, err := engine.Apply("Jarvis, switch to Dark  Mode")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "J.A.R.V.I.S., switch to dark theme" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineIteratesUntilStable(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{{Match: "a", Replace: "b"}, {Match: "b", Replace: "c"}}, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	output, err := engine.Apply("aaa")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "ccc" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineReportsNonConvergence(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{{Match: "x", Replace: "xx", CaseSensitive: true}}, 3)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if _, err := engine.Apply("x"); err == nil {
		t.Fatalf("expected non-convergence error")
	}
}

func TestEngineLiteralReplacementIsNotExpanded(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{{Match: "price", Replace: "$1 cost"}}, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	output, err := engine.Apply("the price")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "the $1 cost" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineCaseSensitiveRule(t *testing.T) {
	t.Parallel()

	engine, err := NewEngine([]Rule{{Match: "Red", Replace: "crimson", CaseSensitive: true}}, 5)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	output, _ := engine.Apply("red Red")
	if output != "red crimson" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestNewEngineRejectsInvalidRules(t *testing.T) {
	t.Parallel()

	if _, err := NewEngine([]Rule{{Match: "  "}}, 5); err == nil {
		t.Fatalf("expected empty match error")
	}
	_, err := NewEngine([]Rule{{Match: "([", Regex: true}}, 5)
	if err == nil || !strings.Contains(err.Error(), "rule 1") {
		t.Fatalf("expected indexed regex error, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transcript-rules.yaml")
	contents := `
rules:
  - match: "jarvis"
    replace: "JARVIS"
  - match: '\s+'
    replace: " "
    regex: true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	engine, err := LoadFile(path, 10)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if engine.Len() != 2 {
		t.Fatalf("expected 2 rules, got %d", engine.Len())
	}
	output, err := engine.Apply("hello   jarvis")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "hello JARVIS" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestLoadFileMissingOrEmptyPath(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		engine, err := LoadFile(path, 0)
		if err != nil {
			t.Fatalf("expected no error for %q, got %v", path, err)
		}
		if out, _ := engine.Apply("unchanged"); out != "unchanged" {
			t.Fatalf("expected passthrough, got %q", out)
		}
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rules: [unterminated"), 0o600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := LoadFile(path, 5); err == nil {
		t.Fatalf("expected parse error")
	}
}
