package activation

import "errors"

// Activation-specific compile-time errors. Structural and consistency errors
// from internal/plan are reused where they apply.
var (
	// ErrNoActionBody is reported when a function concept has no resolvable
	// action body. Downstream execution would otherwise fail opaquely, so
	// this is surfaced at compile time, never silently dropped.
	ErrNoActionBody = errors.New("function concept has no resolvable action body")

	// ErrUnknownSequenceType is reported for an inference line whose sequence
	// type is not one of the six strategies.
	ErrUnknownSequenceType = errors.New("unknown sequence type")

	// ErrMissingOutput is reported for an inference line with no output
	// concept.
	ErrMissingOutput = errors.New("inference line has no output concept")

	// ErrMissingRoot is reported when the declared plan root names no
	// concept in the tree.
	ErrMissingRoot = errors.New("declared plan root names no concept")
)
