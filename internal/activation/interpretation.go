package activation

import (
	"sort"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// buildInterpretation emits the execution payload for one inference line,
// dispatched strictly by sequence type. Every branch validates its required
// fields through the tagged union's Validate; a partially populated payload
// never leaves this function.
func buildInterpretation(infNode *Node, res *resolvedValues) (plan.WorkingInterpretation, error) {
	timer := logging.StartTimer(logging.CategoryInterpretation, "buildInterpretation "+infNode.Address)
	defer timer.Stop()

	var wi plan.WorkingInterpretation
	seq := plan.SequenceType(infNode.SequenceType)

	switch seq {
	case plan.SeqImperative:
		wi = plan.WorkingInterpretation{
			Kind:       plan.SeqImperative,
			Imperative: imperativeSpec(infNode, res),
		}

	case plan.SeqJudgement:
		spec := &plan.JudgementSpec{ImperativeSpec: *imperativeSpec(infNode, res)}
		if infNode.Assertion != nil {
			spec.Assertion = *infNode.Assertion
		}
		wi = plan.WorkingInterpretation{Kind: plan.SeqJudgement, Judgement: spec}

	case plan.SeqAssigning:
		wi = plan.WorkingInterpretation{
			Kind:      plan.SeqAssigning,
			Assigning: assigningSpec(infNode),
		}

	case plan.SeqGrouping:
		spec := &plan.GroupingSpec{Marker: infNode.Marker}
		if infNode.Group != nil {
			spec.AxisConcepts = infNode.Group.AxisConcepts
			spec.ProtectAxes = infNode.Group.ProtectAxes
			spec.CreateAxis = infNode.Group.CreateAxis
		}
		if len(spec.AxisConcepts) == 0 {
			// Context edges supply the grouping keys when the line carries
			// no explicit axis declaration.
			spec.AxisConcepts = res.contexts
		}
		wi = plan.WorkingInterpretation{Kind: plan.SeqGrouping, Grouping: spec}

	case plan.SeqTiming:
		condition := infNode.Condition
		if condition == "" && len(res.names) > 0 {
			condition = res.names[0]
		}
		// Blackboard stays nil here: it is runtime-supplied.
		wi = plan.WorkingInterpretation{
			Kind:   plan.SeqTiming,
			Timing: &plan.TimingSpec{Marker: infNode.Marker, ConditionConcept: condition},
		}

	case plan.SeqLooping:
		spec := &plan.LoopingSpec{}
		if loop := infNode.Loop; loop != nil {
			spec.LoopIndex = loop.Index
			spec.BaseConcept = loop.Base
			spec.GroupKey = loop.GroupKey
			spec.CarryConcepts = loop.Carry
			spec.InferConcepts = loop.Infer
			if loop.Base != "" && loop.Index != "" {
				// The per-iteration element concept is the base name with
				// the loop index suffixed.
				spec.ElementConcept = loop.Base + "_" + loop.Index
			}
		}
		wi = plan.WorkingInterpretation{Kind: plan.SeqLooping, Looping: spec}

	default:
		return plan.WorkingInterpretation{}, plan.Structural(infNode.addr, ErrUnknownSequenceType)
	}

	if err := wi.Validate(); err != nil {
		return plan.WorkingInterpretation{}, plan.Structural(infNode.addr, err)
	}
	return wi, nil
}

// imperativeSpec assembles the shared imperative fields: paradigm, value
// order, selectors, and fixed ground values.
func imperativeSpec(infNode *Node, res *resolvedValues) *plan.ImperativeSpec {
	paradigm := infNode.Paradigm
	if paradigm == "" {
		paradigm = infNode.Function
	}

	// Explicit ordering bindings win; unordered names fill the remaining
	// positions in document order.
	order := make(map[string]int, len(res.names))
	used := make(map[int]bool, len(res.names))
	for name, pos := range res.orders {
		order[name] = pos
		used[pos] = true
	}
	next := 1
	for _, name := range res.names {
		if _, ok := order[name]; ok {
			continue
		}
		for used[next] {
			next++
		}
		order[name] = next
		used[next] = true
	}

	spec := &plan.ImperativeSpec{
		Paradigm:    paradigm,
		ValueOrder:  order,
		OutputShape: plan.SignTag(infNode.OutputShape),
	}
	if len(res.selectors) > 0 {
		spec.ValueSelectors = make(map[string]plan.ValueSelector, len(res.selectors))
		for k, v := range res.selectors {
			spec.ValueSelectors[k] = v
		}
	}
	if len(res.fixed) > 0 {
		spec.Values = make(map[string]any, len(res.fixed))
		keys := make([]string, 0, len(res.fixed))
		for k := range res.fixed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			spec.Values[k] = res.fixed[k]
		}
	}
	return spec
}

// assigningSpec maps the line's marker annotation onto exactly one
// marker-specific field set.
func assigningSpec(infNode *Node) *plan.AssigningSpec {
	spec := &plan.AssigningSpec{Marker: plan.AssignMarker(infNode.Marker)}
	ann := infNode.Assign
	if ann == nil {
		return spec
	}
	switch spec.Marker {
	case plan.AssignIdentity:
		alias := ann.Alias
		if alias == "" {
			alias = infNode.Output
		}
		spec.Identity = &plan.IdentityAssign{Canonical: ann.Canonical, Alias: alias}
	case plan.AssignAbstraction:
		spec.Abstraction = &plan.AbstractionAssign{Face: ann.Face, Axes: ann.Axes}
	case plan.AssignSpecification:
		specific := ann.Specific
		if specific == "" {
			specific = infNode.Output
		}
		spec.Specification = &plan.SpecificationAssign{General: ann.General, Specific: specific}
	case plan.AssignContinuation:
		spec.Continuation = &plan.ContinuationAssign{GroupAxes: ann.GroupAxes}
	case plan.AssignDerelation:
		spec.Derelation = &plan.DerelationAssign{Key: ann.Key, Index: ann.Index, Unpack: ann.Unpack}
	}
	return spec
}
