package actuator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"normcode/internal/config"
	"normcode/internal/perception"
	"normcode/internal/plan"
)

type stubLLM struct {
	response   string
	err        error
	lastSystem string
	lastPrompt string
}

func (s *stubLLM) Complete(_ context.Context, prompt string) (string, error) {
	s.lastPrompt = prompt
	return s.response, s.err
}

func (s *stubLLM) CompleteWithSystem(_ context.Context, system, prompt string) (string, error) {
	s.lastSystem = system
	s.lastPrompt = prompt
	return s.response, s.err
}

func testParadigmActuator(t *testing.T, llm LLMClient, paradigmBody string) *ParadigmActuator {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "double.md"), []byte(paradigmBody), 0644); err != nil {
		t.Fatalf("write paradigm: %v", err)
	}
	paths := perception.NewPathMap(config.PathsConfig{ParadigmDir: dir}, "")
	return NewParadigmActuator(llm, paths)
}

func TestParadigmActuateSubstitutesInputs(t *testing.T) {
	llm := &stubLLM{response: "10"}
	a := testParadigmActuator(t, llm, "Double the number {x} and return it.")

	req := &Request{
		Address:  plan.MustParseAddress("1"),
		Output:   "y",
		Paradigm: "double",
		Values:   []Value{{Name: "x", Data: float64(5)}},
	}
	result, err := a.Actuate(context.Background(), req)
	if err != nil {
		t.Fatalf("Actuate failed: %v", err)
	}
	if !strings.Contains(llm.lastPrompt, "Double the number 5") {
		t.Errorf("placeholder not substituted: %q", llm.lastPrompt)
	}
	if result.Value != float64(10) {
		t.Errorf("result = %v (%T), want 10", result.Value, result.Value)
	}
}

func TestParadigmActuateMissingDefinition(t *testing.T) {
	a := testParadigmActuator(t, &stubLLM{response: "x"}, "body")
	req := &Request{Paradigm: "nonexistent", Values: nil}
	if _, err := a.Actuate(context.Background(), req); err == nil {
		t.Fatal("missing paradigm definition should fail")
	}
}

func TestRenderTemplateAppendsUnnamedInputs(t *testing.T) {
	out := renderTemplate("Summarize {title}.", []Value{
		{Name: "title", Data: "Moby Dick"},
		{Name: "body", Data: "Call me Ishmael."},
	})
	if !strings.Contains(out, "Summarize Moby Dick.") {
		t.Errorf("named input not substituted: %q", out)
	}
	if !strings.Contains(out, "1. body: Call me Ishmael.") {
		t.Errorf("unnamed input not appended: %q", out)
	}
}

func TestRenderTemplateEncodesStructuredInputs(t *testing.T) {
	out := renderTemplate("Use {rows}.", []Value{
		{Name: "rows", Data: []any{float64(1), float64(2)}},
	})
	if !strings.Contains(out, "[1,2]") {
		t.Errorf("structured input not JSON-encoded: %q", out)
	}
}

func TestJudgementActuateParsesVerdicts(t *testing.T) {
	cases := []struct {
		name     string
		response string
		want     bool
		wantErr  bool
	}{
		{"json true", "true", true, false},
		{"json false", "false", false, false},
		{"bare yes", "Yes", true, false},
		{"bare no", "no", false, false},
		{"prose", "it depends", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			llm := &stubLLM{response: tc.response}
			inner := testParadigmActuator(t, llm, "Is {x} positive?")
			a := &JudgementActuator{Inner: inner}

			req := &Request{
				Paradigm: "double",
				Values:   []Value{{Name: "x", Data: float64(5)}},
			}
			result, err := a.Actuate(context.Background(), req)
			if tc.wantErr {
				if !errors.Is(err, ErrNoVerdict) {
					t.Fatalf("got %v, want ErrNoVerdict", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Actuate failed: %v", err)
			}
			if result.Value != tc.want {
				t.Errorf("verdict = %v, want %v", result.Value, tc.want)
			}
		})
	}
}

func TestDecodeLoose(t *testing.T) {
	cases := []struct {
		raw  string
		want any
	}{
		{"10", float64(10)},
		{`"hello"`, "hello"},
		{"true", true},
		{"  plain text  ", "plain text"},
	}
	for _, tc := range cases {
		if got := decodeLoose(tc.raw); got != tc.want {
			t.Errorf("decodeLoose(%q) = %v (%T), want %v", tc.raw, got, got, tc.want)
		}
	}
}

func TestScriptActuatorRejectsUnknownExtension(t *testing.T) {
	a := NewScriptActuator(0)
	req := &Request{Script: "/tmp/evil.rb"}
	_, err := a.Actuate(context.Background(), req)
	if !errors.Is(err, ErrInterpreterNotAllowed) {
		t.Fatalf("got %v, want ErrInterpreterNotAllowed", err)
	}
}
