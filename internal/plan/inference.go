package plan

import "fmt"

// Inference is one executable step of the plan. Inferences are created once
// by activation and are read-only during execution; the engine owns their
// results, not their definitions.
type Inference struct {
	Address         FlowAddress           `json:"flow_address"`
	SequenceType    SequenceType          `json:"sequence_type"`
	OutputConcept   string                `json:"output_concept"`
	FunctionConcept string                `json:"function_concept"`
	ValueConcepts   []string              `json:"value_concepts"`
	ContextConcepts []string              `json:"context_concepts,omitempty"`
	Interpretation  WorkingInterpretation `json:"working_interpretation"`
}

// Validate checks the inference-local invariants: a populated output concept,
// a valid sequence type, and a matching, fully populated interpretation.
func (inf *Inference) Validate() error {
	if len(inf.Address) == 0 {
		return Structural(inf.Address, ErrBadAddress)
	}
	if inf.OutputConcept == "" {
		return Structural(inf.Address, fmt.Errorf("inference has no output concept"))
	}
	if !ValidSequenceType(inf.SequenceType) {
		return Structural(inf.Address, fmt.Errorf("unknown sequence type %q", inf.SequenceType))
	}
	if inf.Interpretation.Kind != inf.SequenceType {
		return Structural(inf.Address, ErrVariantMismatch)
	}
	if err := inf.Interpretation.Validate(); err != nil {
		return Structural(inf.Address, err)
	}
	return nil
}
