package activation

import (
	"fmt"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// resolvedValues is the provenance resolver's output for one inference: the
// value-concept reference list with synthesized selector keys spliced in,
// plus the selector table those keys resolve through.
type resolvedValues struct {
	// names holds, in document order, the effective input names: real
	// concept names, or synthesized intermediate names for sub-extractions.
	names []string
	// orders maps each effective name to its declared 1-based position
	// (zero when the edge carried no ordering binding).
	orders map[string]int
	// selectors maps synthesized names to their extraction descriptors.
	selectors map[string]plan.ValueSelector
	// contexts holds the context-concept names (not inputs).
	contexts []string
	// fixed holds literal values carried directly on ground edges.
	fixed map[string]any
	// norms maps each effective name to the declared input norm on its edge.
	norms map[string]string
}

// resolveProvenance reconciles the paradigms' need for flat named inputs
// with the plan's habit of nesting values inside grouped concepts. For each
// value reference it walks backward to the producing inference (through
// identity aliases); when the producer is a grouping operation the reference
// becomes a synthesized intermediate name with a value_selector describing
// the extraction.
func resolveProvenance(idx *index, infNode *Node) (*resolvedValues, error) {
	res := &resolvedValues{
		orders:    make(map[string]int),
		selectors: make(map[string]plan.ValueSelector),
		fixed:     make(map[string]any),
		norms:     make(map[string]string),
	}

	for _, edge := range idx.children[infNode.addr.String()] {
		if edge.Context {
			res.contexts = append(res.contexts, edge.Name)
			continue
		}

		name := edge.Name
		producer := traceProducer(idx, name)

		if producer != nil && plan.SequenceType(producer.SequenceType) == plan.SeqGrouping {
			sel, label, err := selectorFor(edge)
			if err != nil {
				return nil, plan.Structural(edge.addr, err)
			}
			synth := fmt.Sprintf("%s~%s", name, label)
			sel.SourceConcept = name
			res.selectors[synth] = sel
			logging.Get(logging.CategoryProvenance).Debug(
				"Synthesized selector %s (source=%s, branch=%s)", synth, name, sel.Branch)
			name = synth
		} else if edge.Select != nil {
			// A sub-extraction of something that is not a grouped concept
			// cannot be resolved; better to fail here than at actuation.
			return nil, plan.Structural(edge.addr,
				fmt.Errorf("select annotation on %q whose producer is not a grouping operation", name))
		}

		res.names = append(res.names, name)
		if edge.Order > 0 {
			res.orders[name] = edge.Order
		}
		if edge.InputNorm != "" {
			res.norms[name] = edge.InputNorm
		}
		if edge.Value != nil {
			res.fixed[name] = edge.Value
		}
	}
	return res, nil
}

// traceProducer walks backward from a concept name to its producing
// inference, following identity-assignment aliases to their canonical
// concept.
func traceProducer(idx *index, name string) *Node {
	seen := make(map[string]bool)
	for {
		if seen[name] {
			return nil // alias cycle; surfaced elsewhere as unproduced
		}
		seen[name] = true

		producer, ok := idx.producers[name]
		if !ok {
			return nil
		}
		if plan.SequenceType(producer.SequenceType) == plan.SeqAssigning &&
			producer.Marker == string(plan.AssignIdentity) &&
			producer.Assign != nil && producer.Assign.Canonical != "" {
			name = producer.Assign.Canonical
			continue
		}
		return producer
	}
}

// selectorFor converts a select annotation to a value selector and a short
// label for the synthesized name. An unannotated reference to a grouped
// concept defaults to an unpack (spread) of the whole group.
func selectorFor(edge *Node) (plan.ValueSelector, string, error) {
	ann := edge.Select
	if ann == nil {
		return plan.ValueSelector{Unpack: true}, "all", nil
	}
	switch ann.Branch {
	case "", "pre", "post":
	default:
		return plan.ValueSelector{}, "", fmt.Errorf("%w: branch %q", plan.ErrBadSelector, ann.Branch)
	}
	set := 0
	if ann.Key != "" {
		set++
	}
	if ann.Index != nil {
		set++
	}
	if ann.Unpack {
		set++
	}
	if set != 1 {
		return plan.ValueSelector{}, "", plan.ErrBadSelector
	}
	sel := plan.ValueSelector{Key: ann.Key, Index: ann.Index, Unpack: ann.Unpack, Branch: ann.Branch}
	switch {
	case ann.Key != "":
		return sel, ann.Key, nil
	case ann.Index != nil:
		return sel, fmt.Sprintf("i%d", *ann.Index), nil
	default:
		return sel, "all", nil
	}
}
