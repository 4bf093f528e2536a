package perception

import (
	"fmt"
	"os"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// ValidateResources eagerly checks every external resource the repositories
// reference: paradigm definitions for semantic inferences, and the files
// behind file/prompt/script signs in ground concepts. Activation calls this
// so missing resources fail at compile time instead of at first use.
func (c *Codec) ValidateResources(repos *plan.Repositories) error {
	timer := logging.StartTimer(logging.CategoryPerception, "ValidateResources")
	defer timer.Stop()

	for i := range repos.Concepts {
		concept := &repos.Concepts[i]
		s, ok := concept.InitialValue.(string)
		if !ok || !plan.IsSign(s) {
			continue
		}
		sign, err := plan.ParseSign(s)
		if err != nil {
			return plan.Structural(firstAddress(concept), err)
		}
		switch sign.Tag {
		case plan.TagFile, plan.TagPrompt, plan.TagScript:
			path, err := c.paths.Resolve(sign.Tag, sign.Payload)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err != nil {
				return &ResourceError{Sign: sign, Path: path, Err: err}
			}
		case plan.TagParam:
			if _, ok := c.paths.Param(sign.Payload); !ok {
				return &ResourceError{Sign: sign, Path: sign.Payload, Err: ErrResourceMissing}
			}
		}
	}

	for i := range repos.Inferences {
		inf := &repos.Inferences[i]
		paradigm := ""
		switch inf.SequenceType {
		case plan.SeqImperative:
			paradigm = inf.Interpretation.Imperative.Paradigm
		case plan.SeqJudgement:
			paradigm = inf.Interpretation.Judgement.Paradigm
		default:
			continue
		}
		path := c.paths.ParadigmPath(paradigm)
		if _, err := os.Stat(path); err != nil {
			return &ResourceError{
				Sign: plan.Sign{Tag: plan.TagPrompt, Payload: paradigm},
				Path: path,
				Err:  fmt.Errorf("paradigm %q for inference %s: %w", paradigm, inf.Address, err),
			}
		}
	}

	logging.Perception("Resource validation passed: %d concepts, %d inferences",
		len(repos.Concepts), len(repos.Inferences))
	return nil
}

func firstAddress(c *plan.Concept) plan.FlowAddress {
	if len(c.Addresses) > 0 {
		return c.Addresses[0]
	}
	return nil
}
