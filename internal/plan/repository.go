package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Repositories bundles the two linked JSON repositories: the compiler's
// output and the engine's input. The GUI tooling reads them; only activation
// writes them.
type Repositories struct {
	Concepts   []Concept   `json:"concepts"`
	Inferences []Inference `json:"inferences"`
}

// Concept returns the concept record for name, or nil.
func (r *Repositories) Concept(name string) *Concept {
	for i := range r.Concepts {
		if r.Concepts[i].Name == name {
			return &r.Concepts[i]
		}
	}
	return nil
}

// Producer returns the inference whose output is the named concept, or nil.
func (r *Repositories) Producer(name string) *Inference {
	for i := range r.Inferences {
		if r.Inferences[i].OutputConcept == name {
			return &r.Inferences[i]
		}
	}
	return nil
}

// SortInferences orders inferences by flow address (document order).
func (r *Repositories) SortInferences() {
	sort.Slice(r.Inferences, func(i, j int) bool {
		return r.Inferences[i].Address.Less(r.Inferences[j].Address)
	})
}

// Validate enforces the cross-record invariants: per-inference validity,
// address uniqueness, dangling function references, and the single-producer
// rule. Violations are hard failures, not degraded results.
func (r *Repositories) Validate() error {
	byName := make(map[string]*Concept, len(r.Concepts))
	for i := range r.Concepts {
		byName[r.Concepts[i].Name] = &r.Concepts[i]
	}

	seen := make(map[string]bool, len(r.Inferences))
	producers := make(map[string]FlowAddress, len(r.Inferences))
	for i := range r.Inferences {
		inf := &r.Inferences[i]
		if err := inf.Validate(); err != nil {
			return err
		}
		key := inf.Address.String()
		if seen[key] {
			return Structural(inf.Address, ErrDuplicateAddress)
		}
		seen[key] = true

		fn, ok := byName[inf.FunctionConcept]
		if !ok || !fn.IsFunction() {
			return Structural(inf.Address, fmt.Errorf("%w: %q", ErrDanglingFunction, inf.FunctionConcept))
		}

		if prev, dup := producers[inf.OutputConcept]; dup {
			return Structural(inf.Address, fmt.Errorf("%w: %q also produced at %s",
				ErrMultipleProducers, inf.OutputConcept, prev))
		}
		producers[inf.OutputConcept] = inf.Address
	}

	// Every referenced value concept is ground or has exactly one producer.
	for i := range r.Inferences {
		inf := &r.Inferences[i]
		for _, name := range inf.ValueConcepts {
			c, ok := byName[name]
			if !ok {
				// Synthesized selector keys resolve through value_selectors,
				// not the concept table.
				if hasSelector(inf, name) {
					continue
				}
				return Structural(inf.Address, fmt.Errorf("%w: %q", ErrUnproducedValue, name))
			}
			if c.Ground {
				continue
			}
			if _, produced := producers[name]; !produced {
				return Structural(inf.Address, fmt.Errorf("%w: %q", ErrUnproducedValue, name))
			}
		}
	}
	return nil
}

func hasSelector(inf *Inference, name string) bool {
	var selectors map[string]ValueSelector
	switch inf.SequenceType {
	case SeqImperative:
		selectors = inf.Interpretation.Imperative.ValueSelectors
	case SeqJudgement:
		selectors = inf.Interpretation.Judgement.ValueSelectors
	}
	_, ok := selectors[name]
	return ok
}

// Save writes the two repositories next to each other under dir as
// concepts.json and inferences.json. Nothing is written unless both encode.
func (r *Repositories) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create repository directory: %w", err)
	}
	conceptData, err := json.MarshalIndent(r.Concepts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode concept repository: %w", err)
	}
	inferenceData, err := json.MarshalIndent(r.Inferences, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode inference repository: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "concepts.json"), conceptData, 0644); err != nil {
		return fmt.Errorf("failed to write concept repository: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inferences.json"), inferenceData, 0644); err != nil {
		return fmt.Errorf("failed to write inference repository: %w", err)
	}
	return nil
}

// Load reads and validates the two repositories from dir.
func Load(dir string) (*Repositories, error) {
	conceptData, err := os.ReadFile(filepath.Join(dir, "concepts.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read concept repository: %w", err)
	}
	inferenceData, err := os.ReadFile(filepath.Join(dir, "inferences.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read inference repository: %w", err)
	}
	var repos Repositories
	if err := json.Unmarshal(conceptData, &repos.Concepts); err != nil {
		return nil, fmt.Errorf("failed to parse concept repository: %w", err)
	}
	if err := json.Unmarshal(inferenceData, &repos.Inferences); err != nil {
		return nil, fmt.Errorf("failed to parse inference repository: %w", err)
	}
	if err := repos.Validate(); err != nil {
		return nil, err
	}
	repos.SortInferences()
	return &repos, nil
}
