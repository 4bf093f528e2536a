// Package activation compiles an annotated NormCode plan tree into the two
// linked repositories the execution engine consumes: concept records and
// inference records with per-inference working-interpretation payloads.
// Compile-time errors abort activation entirely; no partial repository is
// ever emitted.
package activation

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"normcode/internal/plan"
)

// Tree is the annotated plan tree produced by the upstream formalization
// step. Flow addresses arrive already assigned; activation consumes them.
type Tree struct {
	Plan  string  `json:"plan,omitempty"`
	Root  string  `json:"root"` // name of the final value concept
	Nodes []*Node `json:"nodes"`
}

// NodeKind distinguishes annotated value-concept lines from inference
// ("<=") lines.
type NodeKind string

const (
	NodeValue     NodeKind = "value"
	NodeInference NodeKind = "inference"
)

// SelectAnnotation marks a value reference as a sub-extraction of a grouped
// concept. The provenance resolver turns it into a value_selector entry.
type SelectAnnotation struct {
	Key    string `json:"key,omitempty"`
	Index  *int   `json:"index,omitempty"`
	Unpack bool   `json:"unpack,omitempty"`
	Branch string `json:"branch,omitempty"` // "pre" | "post"
}

// AssignAnnotation carries the marker-specific fields of an assigning line.
type AssignAnnotation struct {
	Canonical string   `json:"canonical,omitempty"`
	Alias     string   `json:"alias,omitempty"`
	Face      any      `json:"face,omitempty"`
	Axes      []string `json:"axes,omitempty"`
	General   string   `json:"general,omitempty"`
	Specific  string   `json:"specific,omitempty"`
	GroupAxes []string `json:"group_axes,omitempty"`
	Key       string   `json:"key,omitempty"`
	Index     *int     `json:"index,omitempty"`
	Unpack    bool     `json:"unpack,omitempty"`
}

// GroupAnnotation carries grouping axis declarations.
type GroupAnnotation struct {
	AxisConcepts []string `json:"axis_concepts"`
	ProtectAxes  []string `json:"protect_axes,omitempty"`
	CreateAxis   string   `json:"create_axis,omitempty"`
}

// LoopAnnotation carries looping declarations.
type LoopAnnotation struct {
	Index    string   `json:"index"`
	Base     string   `json:"base"`
	GroupKey string   `json:"group_key,omitempty"`
	Carry    []string `json:"carry,omitempty"`
	Infer    []string `json:"infer"`
}

// Node is one annotated line of the formalized plan.
type Node struct {
	Address string   `json:"flow_address"`
	Kind    NodeKind `json:"kind"`

	// Value-concept fields.
	Name      string            `json:"name,omitempty"`
	Type      string            `json:"type,omitempty"` // object | relation | statement
	NLName    string            `json:"nl_name,omitempty"`
	Input     bool              `json:"input,omitempty"`    // explicit input marker
	Resource  string            `json:"resource,omitempty"` // resource-path annotation
	Value     any               `json:"value,omitempty"`    // literal initial data
	Axes      []string          `json:"axes,omitempty"`
	Order     int               `json:"order,omitempty"`      // 1-based binding into the owning inference
	InputNorm string            `json:"input_norm,omitempty"` // "sign" | "literal"
	Context   bool              `json:"context,omitempty"`
	Select    *SelectAnnotation `json:"select,omitempty"`

	// Inference fields (the "<=" lines).
	SequenceType string                   `json:"sequence_type,omitempty"`
	Function     string                   `json:"function,omitempty"`
	Body         string                   `json:"body,omitempty"`
	Output       string                   `json:"output,omitempty"`
	Paradigm     string                   `json:"paradigm,omitempty"`
	OutputShape  string                   `json:"output_shape,omitempty"`
	Assertion    *plan.AssertionCondition `json:"assertion,omitempty"`
	Marker       string                   `json:"marker,omitempty"`
	Assign       *AssignAnnotation        `json:"assign,omitempty"`
	Group        *GroupAnnotation         `json:"group,omitempty"`
	Loop         *LoopAnnotation          `json:"loop,omitempty"`
	Condition    string                   `json:"condition,omitempty"` // timing condition concept

	addr plan.FlowAddress
}

// Addr returns the parsed flow address.
func (n *Node) Addr() plan.FlowAddress { return n.addr }

// index is the parsed, cross-linked view of a tree used by the builders.
type index struct {
	tree *Tree

	// inferences in document order
	inferences []*Node
	// values in document order
	values []*Node
	// producer of each output concept name
	producers map[string]*Node
	// children[addr] lists the value nodes owned by the inference at addr
	// (nearest-ancestor relation), in document order.
	children map[string][]*Node
}

// buildIndex parses addresses, checks hierarchy and uniqueness, and
// cross-links value nodes to their owning inference.
func buildIndex(tree *Tree) (*index, error) {
	if len(tree.Nodes) == 0 {
		return nil, fmt.Errorf("plan tree has no nodes")
	}

	seen := make(map[string]*Node, len(tree.Nodes))
	for _, n := range tree.Nodes {
		addr, err := plan.ParseAddress(n.Address)
		if err != nil {
			return nil, err
		}
		n.addr = addr
		if prev, dup := seen[n.Address]; dup {
			return nil, plan.Structural(addr, fmt.Errorf("%w: also used by %s node",
				plan.ErrDuplicateAddress, prev.Kind))
		}
		seen[n.Address] = n
	}

	// Non-root addresses must extend an existing parent: the hierarchy is
	// strict, never sparse.
	for _, n := range tree.Nodes {
		parent := n.addr.Parent()
		if parent == nil {
			continue
		}
		if _, ok := seen[parent.String()]; !ok {
			return nil, plan.Structural(n.addr,
				fmt.Errorf("%w: parent %s missing", plan.ErrBadAddress, parent))
		}
	}

	nodes := make([]*Node, len(tree.Nodes))
	copy(nodes, tree.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].addr.Less(nodes[j].addr) })

	idx := &index{
		tree:      tree,
		producers: make(map[string]*Node),
		children:  make(map[string][]*Node),
	}
	for _, n := range nodes {
		switch n.Kind {
		case NodeInference:
			idx.inferences = append(idx.inferences, n)
			if n.Output != "" {
				if prev, dup := idx.producers[n.Output]; dup {
					return nil, plan.Structural(n.addr, fmt.Errorf("%w: %q also produced at %s",
						plan.ErrMultipleProducers, n.Output, prev.addr))
				}
				idx.producers[n.Output] = n
			}
		case NodeValue:
			idx.values = append(idx.values, n)
		default:
			return nil, plan.Structural(n.addr, fmt.Errorf("unknown node kind %q", n.Kind))
		}
	}

	// Each value node belongs to its nearest ancestor inference node.
	for _, v := range idx.values {
		owner := nearestInference(v, seen)
		if owner == nil {
			continue // top-level declaration, not an edge
		}
		key := owner.addr.String()
		idx.children[key] = append(idx.children[key], v)
	}
	return idx, nil
}

func nearestInference(v *Node, byAddr map[string]*Node) *Node {
	for parent := v.addr.Parent(); parent != nil; parent = parent.Parent() {
		n, ok := byAddr[parent.String()]
		if !ok {
			return nil
		}
		if n.Kind == NodeInference {
			return n
		}
	}
	return nil
}

// LoadTree reads an annotated plan tree from a JSON file.
func LoadTree(path string) (*Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan tree: %w", err)
	}
	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse plan tree: %w", err)
	}
	return &tree, nil
}
