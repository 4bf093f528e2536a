// Package plan defines the shared data model for NormCode plans: flow
// addresses, concept and inference records, working-interpretation payloads,
// and perceptual signs. This package exists to break import cycles between
// activation, perception, and engine. Types here are foundational data
// structures with no complex dependencies.
package plan

import (
	"fmt"
	"strconv"
	"strings"
)

// FlowAddress is the dotted hierarchical position of a concept or inference
// in the plan (e.g. "1.2.3"). Addresses are assigned by the upstream
// formalization step and consumed, never produced, here. Ordering by address
// equals top-to-bottom document order.
type FlowAddress []int

// ParseAddress parses a dotted address string. Every segment must be a
// strictly positive integer; anything else is a structural error.
func ParseAddress(s string) (FlowAddress, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty address", ErrBadAddress)
	}
	parts := strings.Split(s, ".")
	addr := make(FlowAddress, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %q in %q", ErrBadAddress, p, s)
		}
		if n <= 0 {
			return nil, fmt.Errorf("%w: non-positive segment %d in %q", ErrBadAddress, n, s)
		}
		addr = append(addr, n)
	}
	return addr, nil
}

// MustParseAddress parses an address and panics on error. For tests and
// static tables only.
func MustParseAddress(s string) FlowAddress {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// String returns the dotted form.
func (a FlowAddress) String() string {
	parts := make([]string, len(a))
	for i, n := range a {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// Depth returns the number of segments.
func (a FlowAddress) Depth() int { return len(a) }

// Parent returns the address with the last segment removed, or nil for a
// root address.
func (a FlowAddress) Parent() FlowAddress {
	if len(a) <= 1 {
		return nil
	}
	parent := make(FlowAddress, len(a)-1)
	copy(parent, a[:len(a)-1])
	return parent
}

// IsAncestorOf reports whether a is a proper dotted prefix of other.
func (a FlowAddress) IsAncestorOf(other FlowAddress) bool {
	if len(a) >= len(other) {
		return false
	}
	for i, n := range a {
		if other[i] != n {
			return false
		}
	}
	return true
}

// Equal reports segment-wise equality.
func (a FlowAddress) Equal(other FlowAddress) bool {
	if len(a) != len(other) {
		return false
	}
	for i, n := range a {
		if other[i] != n {
			return false
		}
	}
	return true
}

// Less orders addresses in document order: segment-wise numeric comparison,
// with a shorter address preceding its extensions.
func (a FlowAddress) Less(other FlowAddress) bool {
	for i := 0; i < len(a) && i < len(other); i++ {
		if a[i] != other[i] {
			return a[i] < other[i]
		}
	}
	return len(a) < len(other)
}

// MarshalJSON encodes the address as its dotted string form.
func (a FlowAddress) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON decodes a dotted string form.
func (a *FlowAddress) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBadAddress, data)
	}
	parsed, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
