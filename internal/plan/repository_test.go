package plan

import (
	"errors"
	"path/filepath"
	"testing"
)

func imperativeWI(paradigm string, order map[string]int) WorkingInterpretation {
	return WorkingInterpretation{
		Kind:       SeqImperative,
		Imperative: &ImperativeSpec{Paradigm: paradigm, ValueOrder: order},
	}
}

func validRepos() *Repositories {
	return &Repositories{
		Concepts: []Concept{
			{ID: ConceptID("x"), Name: "x", Type: ConceptObject, Ground: true, InitialValue: float64(5),
				Addresses: []FlowAddress{MustParseAddress("1.1")}},
			{ID: ConceptID("y"), Name: "y", Type: ConceptObject, Final: true,
				Addresses: []FlowAddress{MustParseAddress("1")}},
			{ID: ConceptID("double"), Name: "double", Type: ConceptOperation, ElementType: ElementParadigm,
				Addresses: []FlowAddress{MustParseAddress("1")}},
		},
		Inferences: []Inference{{
			Address:         MustParseAddress("1"),
			SequenceType:    SeqImperative,
			OutputConcept:   "y",
			FunctionConcept: "double",
			ValueConcepts:   []string{"x"},
			Interpretation:  imperativeWI("double", map[string]int{"x": 1}),
		}},
	}
}

func TestValidateAcceptsWellFormedRepos(t *testing.T) {
	if err := validRepos().Validate(); err != nil {
		t.Fatalf("valid repositories rejected: %v", err)
	}
}

func TestValidateRejectsDanglingFunction(t *testing.T) {
	repos := validRepos()
	repos.Inferences[0].FunctionConcept = "halve"
	err := repos.Validate()
	if !errors.Is(err, ErrDanglingFunction) {
		t.Fatalf("got %v, want ErrDanglingFunction", err)
	}
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatal("dangling reference should carry its flow address")
	}
	if structural.Address.String() != "1" {
		t.Errorf("address = %s, want 1", structural.Address)
	}
}

func TestValidateRejectsMultipleProducers(t *testing.T) {
	repos := validRepos()
	repos.Inferences = append(repos.Inferences, Inference{
		Address:         MustParseAddress("2"),
		SequenceType:    SeqImperative,
		OutputConcept:   "y",
		FunctionConcept: "double",
		ValueConcepts:   []string{"x"},
		Interpretation:  imperativeWI("double", map[string]int{"x": 1}),
	})
	if err := repos.Validate(); !errors.Is(err, ErrMultipleProducers) {
		t.Fatalf("got %v, want ErrMultipleProducers", err)
	}
}

func TestValidateRejectsUnproducedValue(t *testing.T) {
	repos := validRepos()
	repos.Concepts[0].Ground = false
	if err := repos.Validate(); !errors.Is(err, ErrUnproducedValue) {
		t.Fatalf("got %v, want ErrUnproducedValue", err)
	}
}

func TestValidateRejectsDuplicateAddress(t *testing.T) {
	repos := validRepos()
	repos.Concepts = append(repos.Concepts, Concept{
		ID: ConceptID("z"), Name: "z", Type: ConceptObject,
		Addresses: []FlowAddress{MustParseAddress("2")},
	})
	repos.Inferences = append(repos.Inferences, Inference{
		Address:         MustParseAddress("1"), // collides
		SequenceType:    SeqImperative,
		OutputConcept:   "z",
		FunctionConcept: "double",
		ValueConcepts:   []string{"x"},
		Interpretation:  imperativeWI("double", map[string]int{"x": 1}),
	})
	if err := repos.Validate(); !errors.Is(err, ErrDuplicateAddress) {
		t.Fatalf("got %v, want ErrDuplicateAddress", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "repo")
	in := validRepos()
	if err := in.Save(dir); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	out, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(out.Concepts) != len(in.Concepts) || len(out.Inferences) != len(in.Inferences) {
		t.Fatalf("record counts changed: %d/%d concepts, %d/%d inferences",
			len(out.Concepts), len(in.Concepts), len(out.Inferences), len(in.Inferences))
	}
	inf := out.Inferences[0]
	if inf.Interpretation.Imperative == nil || inf.Interpretation.Imperative.ValueOrder["x"] != 1 {
		t.Errorf("working interpretation lost: %+v", inf.Interpretation)
	}
	if c := out.Concept("x"); c == nil || !c.Ground {
		t.Error("ground flag lost on x")
	}
}
