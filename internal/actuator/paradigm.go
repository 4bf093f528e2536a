package actuator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"normcode/internal/perception"
)

const paradigmSystem = "Execute the operation described below on the given inputs. " +
	"Return only the result, with no commentary."

// ParadigmActuator performs a semantic step by rendering the paradigm
// definition with the perceived inputs and completing it through the LLM.
type ParadigmActuator struct {
	LLM   LLMClient
	Paths *perception.PathMap
}

// NewParadigmActuator builds the LLM-backed paradigm actuator.
func NewParadigmActuator(llm LLMClient, paths *perception.PathMap) *ParadigmActuator {
	return &ParadigmActuator{LLM: llm, Paths: paths}
}

func (a *ParadigmActuator) Name() string { return "paradigm" }

// Actuate loads the paradigm definition, substitutes the inputs, and runs
// one completion.
func (a *ParadigmActuator) Actuate(ctx context.Context, req *Request) (*Result, error) {
	prompt, err := a.render(req)
	if err != nil {
		return nil, err
	}

	response, err := a.LLM.CompleteWithSystem(ctx, paradigmSystem, prompt)
	if err != nil {
		return nil, err
	}
	return &Result{Value: decodeLoose(response), Raw: response}, nil
}

func (a *ParadigmActuator) render(req *Request) (string, error) {
	path := a.Paths.ParadigmPath(req.Paradigm)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read paradigm %q: %w", req.Paradigm, err)
	}
	return renderTemplate(string(data), req.Values), nil
}

// renderTemplate substitutes {name} placeholders with the rendered input
// values. Inputs the template never names are appended as a trailing block,
// in value_order, so nothing silently drops.
func renderTemplate(template string, values []Value) string {
	rendered := template
	var leftover []Value
	for _, v := range values {
		placeholder := "{" + v.Name + "}"
		if strings.Contains(rendered, placeholder) {
			rendered = strings.ReplaceAll(rendered, placeholder, renderValue(v.Data))
		} else {
			leftover = append(leftover, v)
		}
	}
	if len(leftover) == 0 {
		return rendered
	}

	var b strings.Builder
	b.WriteString(rendered)
	b.WriteString("\n\nInputs:\n")
	for i, v := range leftover {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, v.Name, renderValue(v.Data))
	}
	return b.String()
}
