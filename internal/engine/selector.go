package engine

import (
	"normcode/internal/plan"
)

// dependencies returns the concept names that must be committed before an
// inference can run. Synthesized selector keys resolve to their source
// concept; fixed ground values carried on the edge need nothing.
func dependencies(inf *plan.Inference) []string {
	switch inf.SequenceType {
	case plan.SeqImperative, plan.SeqJudgement:
		spec := imperativePayload(inf)
		deps := make([]string, 0, len(spec.ValueOrder))
		for name := range spec.ValueOrder {
			if sel, ok := spec.ValueSelectors[name]; ok {
				deps = append(deps, sel.SourceConcept)
				continue
			}
			if _, fixed := spec.Values[name]; fixed {
				continue
			}
			deps = append(deps, name)
		}
		return deps

	case plan.SeqAssigning:
		spec := inf.Interpretation.Assigning
		switch spec.Marker {
		case plan.AssignIdentity:
			return []string{spec.Identity.Canonical}
		case plan.AssignAbstraction:
			return nil // the face value is carried in the payload
		case plan.AssignSpecification:
			return []string{spec.Specification.General}
		default:
			return inf.ValueConcepts
		}

	case plan.SeqGrouping:
		return inf.ValueConcepts

	case plan.SeqTiming:
		return []string{inf.Interpretation.Timing.ConditionConcept}

	case plan.SeqLooping:
		return []string{inf.Interpretation.Looping.BaseConcept}
	}
	return inf.ValueConcepts
}

// imperativePayload returns the shared imperative fields of an imperative or
// judgement inference.
func imperativePayload(inf *plan.Inference) *plan.ImperativeSpec {
	if inf.SequenceType == plan.SeqJudgement {
		return &inf.Interpretation.Judgement.ImperativeSpec
	}
	return inf.Interpretation.Imperative
}

// selectReady partitions the untracked inferences into those whose
// dependencies are committed (ready) and those pinned behind a failed slot
// (blocked). Everything else simply waits.
func (e *Engine) selectReady(state *runState) (ready, blocked []*plan.Inference) {
	for i := range e.repos.Inferences {
		inf := &e.repos.Inferences[i]
		addr := inf.Address.String()
		if state.tracker[addr] {
			continue
		}
		if state.bb.IsFailed(inf.OutputConcept) {
			continue // already failed or blocked this run
		}

		if inf.SequenceType == plan.SeqLooping {
			if r, b := e.loopReadiness(state, inf); r {
				ready = append(ready, inf)
			} else if b {
				blocked = append(blocked, inf)
			}
			continue
		}

		if state.bb.IsCommitted(inf.OutputConcept) {
			continue
		}

		waiting := false
		failed := false
		for _, dep := range dependencies(inf) {
			if state.bb.IsFailed(dep) {
				failed = true
				break
			}
			if !state.bb.IsCommitted(dep) {
				waiting = true
			}
		}
		switch {
		case failed:
			blocked = append(blocked, inf)
		case waiting:
			// Not selectable this cycle.
		default:
			ready = append(ready, inf)
		}
	}
	return ready, blocked
}

// loopReadiness decides whether a looping inference can take a step: the
// base collection must be committed, and either the current element has not
// been published yet or the whole iteration body has finished.
func (e *Engine) loopReadiness(state *runState, inf *plan.Inference) (ready, blocked bool) {
	spec := inf.Interpretation.Looping

	if state.bb.IsFailed(spec.BaseConcept) {
		return false, true
	}
	if !state.bb.IsCommitted(spec.BaseConcept) {
		return false, false
	}
	if !state.bb.IsCommitted(spec.ElementConcept) {
		return true, false // publish the next element
	}

	for _, name := range spec.InferConcepts {
		if state.bb.IsFailed(name) {
			return false, true
		}
		if !state.bb.IsCommitted(name) {
			return false, false // body still running
		}
	}
	return true, false // iteration finished; advance
}
