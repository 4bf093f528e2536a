package engine

import "errors"

var (
	// ErrMissingValue indicates a dependency that selection guaranteed but
	// the blackboard does not hold. Always a bug, never user input.
	ErrMissingValue = errors.New("committed value missing from blackboard")

	// ErrNotCollection indicates a selector or loop applied to a value that
	// is not a map or list.
	ErrNotCollection = errors.New("value is not a collection")

	// ErrKeyNotFound indicates a key selector that matches nothing.
	ErrKeyNotFound = errors.New("selector key not found")

	// ErrIndexOutOfRange indicates an index selector outside the collection.
	ErrIndexOutOfRange = errors.New("selector index out of range")

	// ErrNoActuator indicates an inference whose function concept maps to no
	// registered actuator.
	ErrNoActuator = errors.New("no actuator for function concept")
)
