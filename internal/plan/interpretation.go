package plan

import (
	"encoding/json"
	"fmt"
)

// SequenceType is the execution strategy tag of an inference.
type SequenceType string

const (
	SeqImperative SequenceType = "imperative"
	SeqJudgement  SequenceType = "judgement"
	SeqAssigning  SequenceType = "assigning"
	SeqGrouping   SequenceType = "grouping"
	SeqTiming     SequenceType = "timing"
	SeqLooping    SequenceType = "looping"
)

// ValidSequenceType reports whether t is one of the six sequence types.
func ValidSequenceType(t SequenceType) bool {
	switch t {
	case SeqImperative, SeqJudgement, SeqAssigning, SeqGrouping, SeqTiming, SeqLooping:
		return true
	}
	return false
}

// ValueSelector recovers a sub-value from a composite concept produced by a
// grouping operation. Exactly one of Key/Index/Unpack selects; Branch
// controls whether perceptual-sign unwrapping happens before or after the
// extraction.
type ValueSelector struct {
	SourceConcept string `json:"source_concept"`
	Key           string `json:"key,omitempty"`
	Index         *int   `json:"index,omitempty"`
	Unpack        bool   `json:"unpack,omitempty"`
	Branch        string `json:"branch,omitempty"` // "pre" | "post", default pre
}

func (s ValueSelector) validate() error {
	n := 0
	if s.Key != "" {
		n++
	}
	if s.Index != nil {
		n++
	}
	if s.Unpack {
		n++
	}
	if n != 1 {
		return ErrBadSelector
	}
	if s.SourceConcept == "" {
		return fmt.Errorf("%w: empty source_concept", ErrBadSelector)
	}
	switch s.Branch {
	case "", "pre", "post":
	default:
		return fmt.Errorf("%w: branch %q", ErrBadSelector, s.Branch)
	}
	return nil
}

// ImperativeSpec is the working interpretation of an imperative inference.
type ImperativeSpec struct {
	Paradigm       string                   `json:"paradigm"`
	ValueOrder     map[string]int           `json:"value_order"`
	ValueSelectors map[string]ValueSelector `json:"value_selectors,omitempty"`
	Values         map[string]any           `json:"values,omitempty"`
	OutputShape    SignTag                  `json:"output_shape,omitempty"`
}

func (s *ImperativeSpec) validate() error {
	if s.Paradigm == "" {
		return ErrMissingParadigm
	}
	if len(s.ValueOrder) == 0 {
		return ErrEmptyValueOrder
	}
	seen := make(map[int]string, len(s.ValueOrder))
	for name, pos := range s.ValueOrder {
		if pos < 1 {
			return fmt.Errorf("%w: %q at %d", ErrBadValuePosition, name, pos)
		}
		if prev, dup := seen[pos]; dup {
			return fmt.Errorf("%w: %q and %q both at %d", ErrBadValuePosition, prev, name, pos)
		}
		seen[pos] = name
	}
	for key, sel := range s.ValueSelectors {
		if err := sel.validate(); err != nil {
			return fmt.Errorf("value_selector %q: %w", key, err)
		}
	}
	if s.OutputShape != "" && !ValidTag(s.OutputShape) {
		return fmt.Errorf("unknown output shape tag %q", s.OutputShape)
	}
	return nil
}

// AssertionCondition describes the quantified boolean a judgement asserts.
type AssertionCondition struct {
	Quantifier  string `json:"quantifier"` // "all" | "each"
	OverConcept string `json:"over_concept,omitempty"`
	Condition   string `json:"condition"`
}

// JudgementSpec extends the imperative payload with the asserted condition.
type JudgementSpec struct {
	ImperativeSpec
	Assertion AssertionCondition `json:"assertion_condition"`
}

func (s *JudgementSpec) validate() error {
	if err := s.ImperativeSpec.validate(); err != nil {
		return err
	}
	if s.Assertion.Condition == "" {
		return ErrMissingAssertion
	}
	switch s.Assertion.Quantifier {
	case "all":
	case "each":
		if s.Assertion.OverConcept == "" {
			return fmt.Errorf("%w: each requires over_concept", ErrBadQuantifier)
		}
	default:
		return fmt.Errorf("%w: %q", ErrBadQuantifier, s.Assertion.Quantifier)
	}
	return nil
}

// AssignMarker selects the assigning sub-strategy.
type AssignMarker string

const (
	AssignIdentity      AssignMarker = "identity"
	AssignAbstraction   AssignMarker = "abstraction"
	AssignSpecification AssignMarker = "specification"
	AssignContinuation  AssignMarker = "continuation"
	AssignDerelation    AssignMarker = "derelation"
)

// IdentityAssign binds an alias concept to its canonical concept.
type IdentityAssign struct {
	Canonical string `json:"canonical"`
	Alias     string `json:"alias"`
}

// AbstractionAssign introduces a concept from a face value and axis names.
type AbstractionAssign struct {
	Face any      `json:"face"`
	Axes []string `json:"axes,omitempty"`
}

// SpecificationAssign narrows a general concept into a specific one.
type SpecificationAssign struct {
	General  string `json:"general"`
	Specific string `json:"specific"`
}

// ContinuationAssign carries a concept across grouping axes.
type ContinuationAssign struct {
	GroupAxes []string `json:"group_axes"`
}

// DerelationAssign extracts a sub-value; exactly one selector field is set.
type DerelationAssign struct {
	Key    string `json:"key,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Unpack bool   `json:"unpack,omitempty"`
}

// AssigningSpec is the working interpretation of an assigning inference.
// Exactly one marker-specific field set is populated, matching Marker.
type AssigningSpec struct {
	Marker        AssignMarker         `json:"marker"`
	Identity      *IdentityAssign      `json:"identity,omitempty"`
	Abstraction   *AbstractionAssign   `json:"abstraction,omitempty"`
	Specification *SpecificationAssign `json:"specification,omitempty"`
	Continuation  *ContinuationAssign  `json:"continuation,omitempty"`
	Derelation    *DerelationAssign    `json:"derelation,omitempty"`
}

func (s *AssigningSpec) validate() error {
	populated := 0
	if s.Identity != nil {
		populated++
	}
	if s.Abstraction != nil {
		populated++
	}
	if s.Specification != nil {
		populated++
	}
	if s.Continuation != nil {
		populated++
	}
	if s.Derelation != nil {
		populated++
	}
	if populated > 1 {
		return ErrMarkerFieldConflict
	}
	switch s.Marker {
	case AssignIdentity:
		if s.Identity == nil || s.Identity.Canonical == "" || s.Identity.Alias == "" {
			return fmt.Errorf("%w: identity needs canonical and alias", ErrMarkerFieldMissing)
		}
	case AssignAbstraction:
		if s.Abstraction == nil || s.Abstraction.Face == nil {
			return fmt.Errorf("%w: abstraction needs a face value", ErrMarkerFieldMissing)
		}
	case AssignSpecification:
		if s.Specification == nil || s.Specification.General == "" || s.Specification.Specific == "" {
			return fmt.Errorf("%w: specification needs general and specific", ErrMarkerFieldMissing)
		}
	case AssignContinuation:
		if s.Continuation == nil || len(s.Continuation.GroupAxes) == 0 {
			return fmt.Errorf("%w: continuation needs grouping axes", ErrMarkerFieldMissing)
		}
	case AssignDerelation:
		if s.Derelation == nil {
			return fmt.Errorf("%w: derelation needs a selector", ErrMarkerFieldMissing)
		}
		n := 0
		if s.Derelation.Key != "" {
			n++
		}
		if s.Derelation.Index != nil {
			n++
		}
		if s.Derelation.Unpack {
			n++
		}
		if n != 1 {
			return ErrBadSelector
		}
	default:
		return fmt.Errorf("%w: assigning marker %q", ErrUnknownMarker, s.Marker)
	}
	return nil
}

// GroupingSpec is the working interpretation of a grouping inference.
type GroupingSpec struct {
	Marker       string   `json:"marker"` // "in" | "across"
	AxisConcepts []string `json:"axis_concepts"`
	ProtectAxes  []string `json:"protect_axes,omitempty"`
	CreateAxis   string   `json:"create_axis,omitempty"`
}

func (s *GroupingSpec) validate() error {
	switch s.Marker {
	case "in":
	case "across":
		if s.CreateAxis == "" {
			return ErrMissingCreateAxis
		}
	default:
		return fmt.Errorf("%w: grouping marker %q", ErrUnknownMarker, s.Marker)
	}
	if len(s.AxisConcepts) == 0 {
		return ErrMissingAxisConcepts
	}
	return nil
}

// TimingSpec gates downstream committal on a runtime-evaluated condition.
// Blackboard is deliberately null at compile time; the engine supplies it.
type TimingSpec struct {
	Marker           string `json:"marker"` // "if" | "if-negated" | "after"
	ConditionConcept string `json:"condition_concept"`
	Blackboard       any    `json:"blackboard"`
}

func (s *TimingSpec) validate() error {
	switch s.Marker {
	case "if", "if-negated", "after":
	default:
		return fmt.Errorf("%w: timing marker %q", ErrUnknownMarker, s.Marker)
	}
	if s.ConditionConcept == "" {
		return ErrMissingCondition
	}
	return nil
}

// LoopingSpec re-enters the cycle once per collection element.
type LoopingSpec struct {
	LoopIndex      string   `json:"loop_index"`
	BaseConcept    string   `json:"base_concept"`
	ElementConcept string   `json:"element_concept"`
	GroupKey       string   `json:"group_key"`
	CarryConcepts  []string `json:"carry_concepts,omitempty"`
	InferConcepts  []string `json:"infer_concepts"`
}

func (s *LoopingSpec) validate() error {
	if s.LoopIndex == "" {
		return ErrMissingLoopIndex
	}
	if s.BaseConcept == "" {
		return ErrMissingBaseConcept
	}
	if s.ElementConcept == "" {
		return fmt.Errorf("%w: missing element concept", ErrMissingBaseConcept)
	}
	if len(s.InferConcepts) == 0 {
		return ErrMissingInferTargets
	}
	return nil
}

// WorkingInterpretation is the sequence-type-tagged union of execution
// payloads. Exactly one variant pointer is non-nil and it matches Kind;
// anything else fails Validate. Modeling this as a tagged union rather than
// optional fields on one struct makes "missing required field for this
// variant" checkable at activation time.
type WorkingInterpretation struct {
	Kind       SequenceType
	Imperative *ImperativeSpec
	Judgement  *JudgementSpec
	Assigning  *AssigningSpec
	Grouping   *GroupingSpec
	Timing     *TimingSpec
	Looping    *LoopingSpec
}

// Validate checks that the populated variant matches Kind and that the
// variant's required fields are present.
func (w *WorkingInterpretation) Validate() error {
	if !ValidSequenceType(w.Kind) {
		return fmt.Errorf("unknown sequence type %q", w.Kind)
	}
	variants := map[SequenceType]bool{
		SeqImperative: w.Imperative != nil,
		SeqJudgement:  w.Judgement != nil,
		SeqAssigning:  w.Assigning != nil,
		SeqGrouping:   w.Grouping != nil,
		SeqTiming:     w.Timing != nil,
		SeqLooping:    w.Looping != nil,
	}
	for kind, set := range variants {
		if set != (kind == w.Kind) {
			return fmt.Errorf("%w: kind=%s", ErrVariantMismatch, w.Kind)
		}
	}
	switch w.Kind {
	case SeqImperative:
		return w.Imperative.validate()
	case SeqJudgement:
		return w.Judgement.validate()
	case SeqAssigning:
		return w.Assigning.validate()
	case SeqGrouping:
		return w.Grouping.validate()
	case SeqTiming:
		return w.Timing.validate()
	case SeqLooping:
		return w.Looping.validate()
	}
	return nil
}

// interpretationJSON is the wire form: a kind discriminant plus exactly one
// populated variant field.
type interpretationJSON struct {
	Kind       SequenceType    `json:"kind"`
	Imperative *ImperativeSpec `json:"imperative,omitempty"`
	Judgement  *JudgementSpec  `json:"judgement,omitempty"`
	Assigning  *AssigningSpec  `json:"assigning,omitempty"`
	Grouping   *GroupingSpec   `json:"grouping,omitempty"`
	Timing     *TimingSpec     `json:"timing,omitempty"`
	Looping    *LoopingSpec    `json:"looping,omitempty"`
}

// MarshalJSON emits the discriminated wire form.
func (w WorkingInterpretation) MarshalJSON() ([]byte, error) {
	return json.Marshal(interpretationJSON{
		Kind:       w.Kind,
		Imperative: w.Imperative,
		Judgement:  w.Judgement,
		Assigning:  w.Assigning,
		Grouping:   w.Grouping,
		Timing:     w.Timing,
		Looping:    w.Looping,
	})
}

// UnmarshalJSON decodes and validates the discriminated wire form.
func (w *WorkingInterpretation) UnmarshalJSON(data []byte) error {
	var wire interpretationJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*w = WorkingInterpretation{
		Kind:       wire.Kind,
		Imperative: wire.Imperative,
		Judgement:  wire.Judgement,
		Assigning:  wire.Assigning,
		Grouping:   wire.Grouping,
		Timing:     wire.Timing,
		Looping:    wire.Looping,
	}
	return w.Validate()
}
