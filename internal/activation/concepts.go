package activation

import (
	"fmt"
	"hash/fnv"

	"normcode/internal/logging"
	"normcode/internal/plan"
)

// conceptTable accumulates concept records during extraction, keyed by name.
type conceptTable struct {
	order  []string
	byName map[string]*plan.Concept
}

func newConceptTable() *conceptTable {
	return &conceptTable{byName: make(map[string]*plan.Concept)}
}

func (t *conceptTable) get(name string) *plan.Concept { return t.byName[name] }

func (t *conceptTable) upsert(name string) *plan.Concept {
	if c, ok := t.byName[name]; ok {
		return c
	}
	c := &plan.Concept{ID: plan.ConceptID(name), Name: name}
	t.byName[name] = c
	t.order = append(t.order, name)
	return c
}

func (t *conceptTable) list() []plan.Concept {
	out := make([]plan.Concept, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, *t.byName[name])
	}
	return out
}

// buildConceptTable scans the annotated tree and produces one merged record
// per concept name: value concepts accumulate every flow address they occur
// at; function concepts are typed by their assertion body and element kind.
func buildConceptTable(idx *index) (*conceptTable, error) {
	timer := logging.StartTimer(logging.CategoryConcepts, "buildConceptTable")
	defer timer.Stop()

	table := newConceptTable()

	// Value-concept occurrences merge by name.
	for _, n := range idx.values {
		if n.Name == "" {
			return nil, plan.Structural(n.addr, fmt.Errorf("value node has no concept name"))
		}
		c := table.upsert(n.Name)
		c.Addresses = append(c.Addresses, n.addr)
		if c.Type == "" {
			c.Type = valueType(n.Type)
		}
		if n.NLName != "" {
			c.NLName = n.NLName
		}
		if len(n.Axes) > 0 {
			c.Axes = mergeAxes(c.Axes, n.Axes)
		}
		if n.Input {
			c.Ground = true
		}
		if n.Resource != "" {
			c.Ground = true
			c.InitialValue = resourceSign(n.Name, n.Resource).String()
		}
		if n.Value != nil && c.InitialValue == nil {
			c.InitialValue = n.Value
		}
	}

	// Function-concept occurrences from the inference lines.
	for _, n := range idx.inferences {
		if n.Output == "" {
			return nil, plan.Structural(n.addr, ErrMissingOutput)
		}
		if n.Function == "" {
			return nil, plan.Structural(n.addr, fmt.Errorf("%w: inference for %q",
				ErrNoActionBody, n.Output))
		}
		seq := plan.SequenceType(n.SequenceType)
		if !plan.ValidSequenceType(seq) {
			return nil, plan.Structural(n.addr, fmt.Errorf("%w: %q",
				ErrUnknownSequenceType, n.SequenceType))
		}

		c := table.upsert(n.Function)
		c.Addresses = append(c.Addresses, n.addr)
		if n.NLName != "" && c.NLName == "" {
			c.NLName = n.NLName
		}
		// A quantified truth assertion in the body makes the function a
		// judgement; everything else is an operation.
		if n.Assertion != nil {
			c.Type = plan.ConceptJudgement
		} else if c.Type == "" || !c.IsFunction() {
			c.Type = plan.ConceptOperation
		}
		switch seq {
		case plan.SeqImperative, plan.SeqJudgement:
			c.ElementType = plan.ElementParadigm
			if n.Paradigm == "" && n.Body == "" {
				return nil, plan.Structural(n.addr, fmt.Errorf("%w: %q",
					ErrNoActionBody, n.Function))
			}
		default:
			c.ElementType = plan.ElementOperator
			if n.Marker == "" && n.Loop == nil {
				return nil, plan.Structural(n.addr, fmt.Errorf("%w: operator %q has no marker",
					ErrNoActionBody, n.Function))
			}
		}

		// The output concept exists even when no value node re-declares it.
		out := table.upsert(n.Output)
		if out.Type == "" {
			out.Type = plan.ConceptObject
		}
	}

	// Ground and final classification needs producers resolved.
	rootSeen := false
	for _, name := range table.order {
		c := table.byName[name]
		if c.IsFunction() {
			continue
		}
		producer := idx.producers[name]
		if producer == nil {
			// Pre-supplied at plan start.
			c.Ground = true
		} else if producer.Marker == string(plan.AssignAbstraction) {
			// Abstraction operators introduce their output, so it needs no
			// prior inference to exist.
			c.Ground = true
			if c.InitialValue == nil && producer.Assign != nil {
				c.InitialValue = producer.Assign.Face
			}
		}
		if name == idx.tree.Root {
			c.Final = true
			rootSeen = true
		}
	}
	if idx.tree.Root != "" && !rootSeen {
		return nil, fmt.Errorf("%w: %q", ErrMissingRoot, idx.tree.Root)
	}

	logging.Get(logging.CategoryConcepts).Info("Concept table built: %d concepts", len(table.order))
	return table, nil
}

func valueType(s string) plan.ConceptType {
	switch s {
	case "relation":
		return plan.ConceptRelation
	case "statement":
		return plan.ConceptStatement
	default:
		return plan.ConceptObject
	}
}

func mergeAxes(existing, more []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range more {
		if !seen[a] {
			existing = append(existing, a)
			seen[a] = true
		}
	}
	return existing
}

// resourceSign wraps a resource-path annotation as a file sign with a
// deterministic short id, so repeated activations agree byte-for-byte.
func resourceSign(name, resource string) plan.Sign {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(resource))
	return plan.Sign{Tag: plan.TagFile, ID: fmt.Sprintf("%08x", h.Sum32()), Payload: resource}
}
