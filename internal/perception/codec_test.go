package perception

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"normcode/internal/config"
	"normcode/internal/plan"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"paradigms", "prompts", "data", "scripts", "out"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	paths := NewPathMap(config.PathsConfig{
		ParadigmDir: "paradigms",
		PromptDir:   "prompts",
		DataDir:     "data",
		ScriptDir:   "scripts",
		SaveDir:     "out",
		Params:      map[string]string{"api_version": "v2"},
	}, root)
	return NewCodec(paths)
}

// The round-trip law: perceive(format(v, T)) == v for every supported tag
// and representative value.
func TestRoundTripLaw(t *testing.T) {
	codec := testCodec(t)

	tests := []struct {
		name  string
		tag   plan.SignTag
		value any
	}{
		{"literal number", plan.TagLiteral, float64(5)},
		{"literal object", plan.TagLiteral, map[string]any{"n": float64(5), "s": "hi"}},
		{"bool true", plan.TagBool, true},
		{"bool false", plan.TagBool, false},
		{"single location", plan.TagFile, map[string]any{"title": "ch1"}},
		{"save location", plan.TagSave, []any{"a", "b"}},
		{"list of locations", plan.TagFileList, []any{map[string]any{"i": float64(1)}, "second"}},
		{"prompt text", plan.TagPrompt, "Summarize {chapter} in one line."},
		{"script text", plan.TagScript, "#!/bin/sh\necho ok\n"},
		{"stored param", plan.TagParam, "v2-preview"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signStr, err := codec.Format(tt.value, tt.tag)
			if err != nil {
				t.Fatalf("Format failed: %v", err)
			}
			if !plan.IsSign(signStr) {
				t.Fatalf("Format produced a non-sign: %q", signStr)
			}
			got, err := codec.Perceive(signStr)
			if err != nil {
				t.Fatalf("Perceive failed: %v", err)
			}
			if diff := cmp.Diff(tt.value, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPerceiveForwardsLiterals(t *testing.T) {
	codec := testCodec(t)

	// Non-sign values pass through untouched.
	for _, v := range []any{"plain text", float64(42), true, []any{"x"}} {
		got, err := codec.Perceive(v)
		if err != nil {
			t.Fatalf("Perceive(%v) failed: %v", v, err)
		}
		if diff := cmp.Diff(v, got); diff != "" {
			t.Errorf("literal forwarded with changes (-want +got):\n%s", diff)
		}
	}
}

func TestPerceiveMissingFileIsResourceError(t *testing.T) {
	codec := testCodec(t)

	sign := plan.Sign{Tag: plan.TagFile, ID: "deadbeef", Payload: "missing.json"}
	_, err := codec.Perceive(sign.String())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	var resErr *ResourceError
	if !errors.As(err, &resErr) {
		t.Fatalf("got %T (%v), want *ResourceError", err, err)
	}
}

func TestUnknownTagRejected(t *testing.T) {
	codec := testCodec(t)
	if _, err := codec.Format(5, plan.SignTag("hologram")); err == nil {
		t.Error("unknown tag accepted")
	}
}

func TestRegisterNewTagPair(t *testing.T) {
	codec := testCodec(t)

	// A new resource kind is a registered pair, nothing more.
	store := map[string]any{}
	codec.Register("memo", TagPair{
		Perceive: func(sign plan.Sign) (any, error) { return store[sign.Payload], nil },
		Format: func(value any, id string) (plan.Sign, error) {
			store[id] = value
			return plan.Sign{Tag: "memo", ID: id, Payload: id}, nil
		},
	})
	// ParseSign gates tags, so exercise the registry directly via PerceiveSign.
	sign, err := codec.registry["memo"].Format("remember me", "m1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := codec.PerceiveSign(sign)
	if err != nil {
		t.Fatal(err)
	}
	if got != "remember me" {
		t.Errorf("got %v", got)
	}
}

func TestValidateResources(t *testing.T) {
	codec := testCodec(t)

	// Paradigm file present for the imperative, data file present for the
	// ground concept.
	root := filepath.Dir(codec.paths.paradigmDir)
	if err := os.WriteFile(filepath.Join(root, "paradigms", "double.md"), []byte("Double {x}."), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "data", "x.json"), []byte("5"), 0644); err != nil {
		t.Fatal(err)
	}

	repos := &plan.Repositories{
		Concepts: []plan.Concept{
			{
				ID: plan.ConceptID("x"), Name: "x", Type: plan.ConceptObject,
				Addresses:    []plan.FlowAddress{plan.MustParseAddress("1.1")},
				Ground:       true,
				InitialValue: plan.Sign{Tag: plan.TagFile, ID: "aa11bb22", Payload: "x.json"}.String(),
			},
			{
				ID: plan.ConceptID("double"), Name: "double", Type: plan.ConceptOperation,
				ElementType: plan.ElementParadigm,
				Addresses:   []plan.FlowAddress{plan.MustParseAddress("1")},
			},
		},
		Inferences: []plan.Inference{{
			Address:         plan.MustParseAddress("1"),
			SequenceType:    plan.SeqImperative,
			OutputConcept:   "y",
			FunctionConcept: "double",
			ValueConcepts:   []string{"x"},
			Interpretation: plan.WorkingInterpretation{
				Kind:       plan.SeqImperative,
				Imperative: &plan.ImperativeSpec{Paradigm: "double", ValueOrder: map[string]int{"x": 1}},
			},
		}},
	}

	if err := codec.ValidateResources(repos); err != nil {
		t.Fatalf("validation should pass: %v", err)
	}

	// Remove the paradigm: validation must fail eagerly.
	if err := os.Remove(filepath.Join(root, "paradigms", "double.md")); err != nil {
		t.Fatal(err)
	}
	if err := codec.ValidateResources(repos); err == nil {
		t.Error("missing paradigm not reported")
	}
}
