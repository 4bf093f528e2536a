package activation

import (
	"fmt"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// buildInferenceTable assembles one inference record per "<=" line: flow
// address, sequence type, concept references, and the working-interpretation
// payload. It depends on the concept table (for dangling-reference and
// consistency checks) and the provenance resolver (for selector synthesis).
func buildInferenceTable(idx *index, table *conceptTable) ([]plan.Inference, error) {
	timer := logging.StartTimer(logging.CategoryActivation, "buildInferenceTable")
	defer timer.Stop()

	inferences := make([]plan.Inference, 0, len(idx.inferences))
	for _, infNode := range idx.inferences {
		res, err := resolveProvenance(idx, infNode)
		if err != nil {
			return nil, err
		}

		wi, err := buildInterpretation(infNode, res)
		if err != nil {
			return nil, err
		}

		// Dangling function references are a hard failure.
		fn := table.get(infNode.Function)
		if fn == nil || !fn.IsFunction() {
			return nil, plan.Structural(infNode.addr,
				fmt.Errorf("%w: %q", plan.ErrDanglingFunction, infNode.Function))
		}

		if err := checkNorms(idx, table, infNode, res); err != nil {
			return nil, err
		}

		inferences = append(inferences, plan.Inference{
			Address:         infNode.addr,
			SequenceType:    plan.SequenceType(infNode.SequenceType),
			OutputConcept:   infNode.Output,
			FunctionConcept: infNode.Function,
			ValueConcepts:   res.names,
			ContextConcepts: res.contexts,
			Interpretation:  wi,
		})
	}

	logging.Activation("Inference table built: %d inferences", len(inferences))
	return inferences, nil
}

// checkNorms enforces the annotation contract: whether a value concept is a
// perceptual sign or a literal must agree with the consuming edge's declared
// input norm. Inconsistency here is a compile-time error, not a runtime
// surprise.
func checkNorms(idx *index, table *conceptTable, infNode *Node, res *resolvedValues) error {
	for name, norm := range res.norms {
		// Synthesized selector keys resolve through their branch descriptor,
		// which already states when sign unwrapping happens.
		if _, synthesized := res.selectors[name]; synthesized {
			continue
		}
		concept := table.get(name)
		if concept == nil {
			continue
		}
		signValued, known := annotationKind(idx, concept)
		if !known {
			continue
		}
		switch norm {
		case "sign":
			if !signValued {
				return plan.Structural(infNode.addr, fmt.Errorf(
					"%w: %q is literal-valued but consumed as sign", plan.ErrNormMismatch, name))
			}
		case "literal":
			if signValued {
				return plan.Structural(infNode.addr, fmt.Errorf(
					"%w: %q is sign-valued but consumed as literal", plan.ErrNormMismatch, name))
			}
		default:
			return plan.Structural(infNode.addr, fmt.Errorf(
				"%w: unknown input norm %q on %q", plan.ErrNormMismatch, norm, name))
		}
	}
	return nil
}

// annotationKind reports whether a concept's value will be a sign at
// runtime. Ground concepts are classified by their initial data; produced
// concepts by their producer's declared output shape. Operator-produced
// composites are literal.
func annotationKind(idx *index, concept *plan.Concept) (signValued, known bool) {
	if concept.InitialValue != nil {
		return concept.HasInitialSign(), true
	}
	producer, ok := idx.producers[concept.Name]
	if !ok {
		return false, false
	}
	switch plan.SequenceType(producer.SequenceType) {
	case plan.SeqImperative, plan.SeqJudgement:
		return producer.OutputShape != "", true
	default:
		return false, true
	}
}
