package actuator

import (
	"errors"
	"fmt"

	"normcode/internal/plan"
)

var (
	// ErrNotFound indicates a requested actuator is not registered.
	ErrNotFound = errors.New("actuator not found")

	// ErrAlreadyRegistered indicates a duplicate registration attempt.
	ErrAlreadyRegistered = errors.New("actuator already registered")

	// ErrNameEmpty indicates an actuator with no name.
	ErrNameEmpty = errors.New("actuator name cannot be empty")

	// ErrUnknownProvider indicates an unrecognized llm.provider setting.
	ErrUnknownProvider = errors.New("unknown LLM provider")

	// ErrAPIKeyMissing indicates the configured provider needs a key.
	ErrAPIKeyMissing = errors.New("LLM API key is required")

	// ErrEmptyResponse indicates the LLM returned no usable content.
	ErrEmptyResponse = errors.New("empty LLM response")

	// ErrNoVerdict indicates a judgement response that is not a boolean.
	ErrNoVerdict = errors.New("judgement response is not a verdict")

	// ErrInterpreterNotAllowed indicates a script extension outside the
	// configured interpreter allowlist.
	ErrInterpreterNotAllowed = errors.New("script interpreter not allowed")
)

// ActuationError is the runtime failure wrapper: it pins the failure to the
// inference's flow address so checkpoints and logs agree on what failed.
type ActuationError struct {
	Address  plan.FlowAddress
	Actuator string
	Err      error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuation failed at %s (%s): %v", e.Address, e.Actuator, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }
