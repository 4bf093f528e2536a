package plan

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// ConceptType tags what a concept denotes.
type ConceptType string

const (
	// Value concepts (data entities).
	ConceptObject    ConceptType = "object"
	ConceptRelation  ConceptType = "relation"
	ConceptStatement ConceptType = "statement"

	// Function concepts (operations).
	ConceptOperation ConceptType = "operation"
	ConceptJudgement ConceptType = "judgement"
)

// ElementType distinguishes semantic operations from syntactic ones.
type ElementType string

const (
	ElementParadigm ElementType = "paradigm" // imperative/judgement, actuated by tools
	ElementOperator ElementType = "operator" // assigning/grouping/timing/looping
)

// Concept is one record of the concept repository. Concepts are created once
// during activation and are immutable afterwards; the execution engine looks
// them up but never mutates them.
type Concept struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Type         ConceptType   `json:"type"`
	ElementType  ElementType   `json:"element_type,omitempty"`
	Addresses    []FlowAddress `json:"addresses"`
	Ground       bool          `json:"ground"`
	Final        bool          `json:"final"`
	InitialValue any           `json:"initial_value,omitempty"`
	Axes         []string      `json:"axes,omitempty"`
	NLName       string        `json:"nl_name,omitempty"`
}

// IsFunction reports whether the concept is an operation definition.
func (c *Concept) IsFunction() bool {
	return c.Type == ConceptOperation || c.Type == ConceptJudgement
}

// HasInitialSign reports whether the concept's initial data is a perceptual
// sign (as opposed to a literal that passes through untouched).
func (c *Concept) HasInitialSign() bool {
	s, ok := c.InitialValue.(string)
	return ok && IsSign(s)
}

// ConceptID derives the stable id for a concept name. The id is
// deterministic so repeated activations of the same plan agree.
func ConceptID(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, name)
	if len(slug) > 32 {
		slug = slug[:32]
	}
	return fmt.Sprintf("%s-%08x", slug, h.Sum32())
}
