package perception

import (
	"errors"
	"fmt"

	"normcode/internal/plan"
)

// ErrResourceMissing is returned when a sign's mapped resource (paradigm,
// prompt, data, script file, or stored parameter) does not exist.
var ErrResourceMissing = errors.New("resource not found")

// ResourceError reports a missing or unreadable external resource together
// with the sign that referenced it and the physical path tried.
type ResourceError struct {
	Sign plan.Sign
	Path string
	Err  error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource error for %s sign (path %s): %v", e.Sign.Tag, e.Path, e.Err)
}

func (e *ResourceError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrResourceMissing
}
