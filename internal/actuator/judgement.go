package actuator

import (
	"context"
	"fmt"
	"strings"
)

// JudgementActuator wraps the paradigm actuator and coerces the response
// into a boolean verdict.
type JudgementActuator struct {
	Inner *ParadigmActuator
}

func (a *JudgementActuator) Name() string { return "judgement" }

// Actuate runs the paradigm completion and parses the verdict. A response
// that cannot be read as a boolean is a failure, not a silent false.
func (a *JudgementActuator) Actuate(ctx context.Context, req *Request) (*Result, error) {
	result, err := a.Inner.Actuate(ctx, req)
	if err != nil {
		return nil, err
	}

	verdict, err := parseVerdict(result.Value)
	if err != nil {
		return nil, err
	}
	result.Value = verdict
	return result, nil
}

func parseVerdict(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %v", ErrNoVerdict, v)
}
