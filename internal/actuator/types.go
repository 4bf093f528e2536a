// Package actuator executes the semantic steps of a plan: paradigm-guided
// LLM calls, judgement verdicts, and script runs. Actuators live in a
// registry; the engine looks one up per inference and hands it the perceived
// horizontal inputs.
package actuator

import (
	"context"
	"encoding/json"
	"strings"

	"normcode/internal/plan"
)

// Value is one horizontal input, already perceived: a plain Go value with
// the concept name it was bound under.
type Value struct {
	Name string
	Data any
}

// Request carries everything one actuation needs. Values arrive in
// value_order position; the actuator never re-sorts them.
type Request struct {
	Address  plan.FlowAddress
	Output   string // output concept name
	Paradigm string // paradigm id, for LLM-backed actuators
	Script   string // resolved script path, for the script actuator
	Values   []Value
}

// Result is the raw outcome of one actuation. Output-shape formatting is the
// caller's job; actuators return plain values.
type Result struct {
	Value      any
	Raw        string
	DurationMs int64
}

// Actuator executes one inference's semantic step.
type Actuator interface {
	Name() string
	Actuate(ctx context.Context, req *Request) (*Result, error)
}

// decodeLoose turns an actuator's textual output into a value: JSON when it
// parses, the trimmed string otherwise.
func decodeLoose(raw string) any {
	trimmed := strings.TrimSpace(raw)
	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v
	}
	return trimmed
}

// renderValue produces the textual form of an input for prompt and stdin
// assembly. Strings pass through; everything else goes through JSON.
func renderValue(data any) string {
	if s, ok := data.(string); ok {
		return s
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(encoded)
}
