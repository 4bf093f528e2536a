package engine

import (
	"fmt"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// executeOperator runs one syntactic inference in-engine. Operators are
// cheap; they run serially in document order within a cycle.
func (e *Engine) executeOperator(state *runState, inf *plan.Inference) error {
	switch inf.SequenceType {
	case plan.SeqAssigning:
		return e.executeAssigning(state, inf)
	case plan.SeqGrouping:
		return e.executeGrouping(state, inf)
	case plan.SeqTiming:
		return e.executeTiming(state, inf)
	case plan.SeqLooping:
		return e.executeLooping(state, inf)
	}
	return fmt.Errorf("inference %s is not an operator", inf.Address)
}

func (e *Engine) executeAssigning(state *runState, inf *plan.Inference) error {
	spec := inf.Interpretation.Assigning
	addr := inf.Address.String()

	switch spec.Marker {
	case plan.AssignIdentity:
		v, ok := state.bb.Get(spec.Identity.Canonical)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingValue, spec.Identity.Canonical)
		}
		state.bb.Commit(inf.OutputConcept, v)

	case plan.AssignAbstraction:
		state.bb.Commit(inf.OutputConcept, spec.Abstraction.Face)

	case plan.AssignSpecification:
		v, ok := state.bb.Get(spec.Specification.General)
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingValue, spec.Specification.General)
		}
		state.bb.Commit(inf.OutputConcept, v)

	case plan.AssignContinuation:
		if len(inf.ValueConcepts) == 0 {
			return fmt.Errorf("continuation at %s has no value concept", addr)
		}
		v, ok := state.bb.Get(inf.ValueConcepts[0])
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingValue, inf.ValueConcepts[0])
		}
		state.bb.Commit(inf.OutputConcept, v)

	case plan.AssignDerelation:
		if len(inf.ValueConcepts) == 0 {
			return fmt.Errorf("derelation at %s has no value concept", addr)
		}
		raw, ok := state.bb.Get(inf.ValueConcepts[0])
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingValue, inf.ValueConcepts[0])
		}
		perceived, err := e.codec.Perceive(raw)
		if err != nil {
			return err
		}
		d := spec.Derelation
		v, err := applySelector(perceived, plan.ValueSelector{
			SourceConcept: inf.ValueConcepts[0],
			Key:           d.Key,
			Index:         d.Index,
			Unpack:        d.Unpack,
		})
		if err != nil {
			return err
		}
		state.bb.Commit(inf.OutputConcept, v)
	}

	state.tracker[addr] = true
	return nil
}

// executeGrouping collects the member values into a composite. Marker "in"
// keys members by their concept name; "across" stacks them into a list along
// the created axis.
func (e *Engine) executeGrouping(state *runState, inf *plan.Inference) error {
	spec := inf.Interpretation.Grouping
	addr := inf.Address.String()

	if spec.Marker == "across" {
		list := make([]any, 0, len(inf.ValueConcepts))
		for _, name := range inf.ValueConcepts {
			v, ok := state.bb.Get(name)
			if !ok {
				return fmt.Errorf("%w: %q", ErrMissingValue, name)
			}
			list = append(list, v)
		}
		state.bb.Commit(inf.OutputConcept, list)
	} else {
		members := make(map[string]any, len(inf.ValueConcepts))
		for _, name := range inf.ValueConcepts {
			v, ok := state.bb.Get(name)
			if !ok {
				return fmt.Errorf("%w: %q", ErrMissingValue, name)
			}
			members[name] = v
		}
		state.bb.Commit(inf.OutputConcept, members)
	}

	state.tracker[addr] = true
	return nil
}

// executeTiming evaluates the gate. A closed gate completes the inference
// without committing anything, so dependents never become selectable.
func (e *Engine) executeTiming(state *runState, inf *plan.Inference) error {
	spec := inf.Interpretation.Timing
	addr := inf.Address.String()

	raw, ok := state.bb.Get(spec.ConditionConcept)
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingValue, spec.ConditionConcept)
	}
	perceived, err := e.codec.Perceive(raw)
	if err != nil {
		return err
	}
	cond := truthy(perceived)

	open := false
	switch spec.Marker {
	case "if":
		open = cond
	case "if-negated":
		open = !cond
	case "after":
		open = true
	}

	if open {
		state.bb.Commit(inf.OutputConcept, true)
	} else {
		logging.EngineDebug("Timing gate %s closed (condition %s=%v)",
			addr, spec.ConditionConcept, perceived)
	}

	state.tracker[addr] = true
	return nil
}

// executeLooping takes one loop step: publish the next element, or collect a
// finished iteration and advance. Carry concepts receive the previous
// iteration's inferred values, positionally.
func (e *Engine) executeLooping(state *runState, inf *plan.Inference) error {
	spec := inf.Interpretation.Looping
	addr := inf.Address.String()

	raw, ok := state.bb.Get(spec.BaseConcept)
	if !ok {
		return fmt.Errorf("%w: %q", ErrMissingValue, spec.BaseConcept)
	}
	perceived, err := e.codec.Perceive(raw)
	if err != nil {
		return err
	}
	elements, err := asList(perceived, spec.GroupKey)
	if err != nil {
		return fmt.Errorf("loop base %q: %w", spec.BaseConcept, err)
	}

	cursor := state.ws.Cursors[addr]
	var lastInfers []any

	if state.bb.IsCommitted(spec.ElementConcept) {
		// Iteration finished: collect, reset the body, advance.
		lastInfers = make([]any, len(spec.InferConcepts))
		iteration := make(map[string]any, len(spec.InferConcepts))
		for i, name := range spec.InferConcepts {
			v, ok := state.bb.Get(name)
			if !ok {
				return fmt.Errorf("%w: %q", ErrMissingValue, name)
			}
			lastInfers[i] = v
			iteration[name] = v
		}
		var collected any = iteration
		if len(spec.InferConcepts) == 1 {
			collected = lastInfers[0]
		}
		state.ws.Accumulators[addr] = append(state.ws.Accumulators[addr], collected)

		for _, body := range e.loopBody(spec) {
			delete(state.tracker, body.Address.String())
			state.bb.Uncommit(body.OutputConcept)
		}
		state.bb.Uncommit(spec.ElementConcept)
		state.bb.Uncommit(spec.LoopIndex)

		cursor++
		state.ws.Cursors[addr] = cursor
	}

	if cursor >= len(elements) {
		state.bb.Commit(inf.OutputConcept, state.ws.Accumulators[addr])
		state.tracker[addr] = true
		logging.Engine("Loop %s finished after %d iterations", addr, cursor)
		return nil
	}

	// Thread the previous iteration's results into the carry concepts.
	for i, carry := range spec.CarryConcepts {
		if i < len(lastInfers) {
			state.bb.Commit(carry, lastInfers[i])
		}
	}

	state.bb.Commit(spec.ElementConcept, elements[cursor])
	state.bb.Commit(spec.LoopIndex, cursor+1)
	logging.EngineDebug("Loop %s published element %d/%d", addr, cursor+1, len(elements))
	return nil
}

// loopBody returns the inferences reachable from the loop's per-iteration
// concepts; these reset between iterations.
func (e *Engine) loopBody(spec *plan.LoopingSpec) []*plan.Inference {
	dirty := map[string]bool{
		spec.ElementConcept: true,
		spec.LoopIndex:      true,
	}
	inBody := make(map[string]bool)
	var body []*plan.Inference

	for changed := true; changed; {
		changed = false
		for i := range e.repos.Inferences {
			inf := &e.repos.Inferences[i]
			addr := inf.Address.String()
			if inBody[addr] || inf.SequenceType == plan.SeqLooping {
				continue
			}
			for _, dep := range dependencies(inf) {
				if dirty[dep] {
					inBody[addr] = true
					body = append(body, inf)
					dirty[inf.OutputConcept] = true
					changed = true
					break
				}
			}
		}
	}
	return body
}

// applySelector extracts a sub-value per the selector descriptor.
func applySelector(value any, sel plan.ValueSelector) (any, error) {
	switch {
	case sel.Key != "":
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: key %q on %T", ErrNotCollection, sel.Key, value)
		}
		v, ok := m[sel.Key]
		if !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrKeyNotFound, sel.Key, sel.SourceConcept)
		}
		return v, nil

	case sel.Index != nil:
		list, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: index on %T", ErrNotCollection, value)
		}
		i := *sel.Index
		if i < 0 || i >= len(list) {
			return nil, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(list))
		}
		return list[i], nil

	default: // unpack: the whole composite passes through
		return value, nil
	}
}

// truthy evaluates a perceived value as a gate condition.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t == "true" || t == "yes"
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}

// asList coerces a loop base into its element list. A grouped composite is
// entered through the group key.
func asList(v any, groupKey string) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if groupKey != "" {
			inner, ok := t[groupKey]
			if !ok {
				return nil, fmt.Errorf("%w: group key %q", ErrKeyNotFound, groupKey)
			}
			return asList(inner, "")
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrNotCollection, v)
}
