package plan

import (
	"errors"
	"fmt"
)

// Structural and consistency errors. All are fatal at compile time; the
// activation pipeline aborts without emitting a partial repository.
var (
	// ErrBadAddress is returned for a non-hierarchical or malformed flow address.
	ErrBadAddress = errors.New("malformed flow address")

	// ErrDuplicateAddress is returned when two records share a flow address.
	ErrDuplicateAddress = errors.New("duplicate flow address")

	// ErrDanglingFunction is returned when an inference references a function
	// concept with no record in the concept table.
	ErrDanglingFunction = errors.New("dangling function concept reference")

	// ErrMultipleProducers is returned when more than one inference claims the
	// same output concept.
	ErrMultipleProducers = errors.New("value concept has multiple producers")

	// ErrUnproducedValue is returned when a non-ground value concept has no
	// producing inference.
	ErrUnproducedValue = errors.New("value concept is neither ground nor produced")

	// ErrNormMismatch is returned when a value concept's sign/literal
	// annotation disagrees with the consumer's declared input norm.
	ErrNormMismatch = errors.New("sign/literal annotation does not match declared input norm")
)

// Working-interpretation validation errors. Each strategy branch fails with
// a named error rather than emitting a partially populated payload.
var (
	ErrMissingParadigm     = errors.New("imperative interpretation missing paradigm")
	ErrEmptyValueOrder     = errors.New("interpretation has empty value order")
	ErrBadValuePosition    = errors.New("value order position must be 1-based and unique")
	ErrMissingAssertion    = errors.New("judgement interpretation missing assertion condition")
	ErrBadQuantifier       = errors.New("assertion quantifier must be all or each")
	ErrUnknownMarker       = errors.New("unrecognized marker")
	ErrMarkerFieldConflict = errors.New("more than one marker-specific field set populated")
	ErrMarkerFieldMissing  = errors.New("marker-specific field set not populated")
	ErrMissingAxisConcepts = errors.New("grouping interpretation missing axis concepts")
	ErrMissingCreateAxis   = errors.New("grouping across requires a create_axis name")
	ErrMissingCondition    = errors.New("timing interpretation missing condition concept")
	ErrMissingLoopIndex    = errors.New("looping interpretation missing loop index")
	ErrMissingBaseConcept  = errors.New("looping interpretation missing base collection concept")
	ErrMissingInferTargets = errors.New("looping interpretation missing per-iteration targets")
	ErrBadSelector         = errors.New("derelation selector must set exactly one of index, key, unpack")
	ErrVariantMismatch     = errors.New("interpretation variant does not match sequence type")
)

// StructuralError attaches a flow address to a compile-time failure so the
// report points at the offending plan line.
type StructuralError struct {
	Address FlowAddress
	Err     error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("structural error at %s: %v", e.Address, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Structural wraps err with the flow address it was detected at.
func Structural(addr FlowAddress, err error) error {
	return &StructuralError{Address: addr, Err: err}
}
