package opt

import (
	"fmt"
	"math"
	"sort"
)

// Bound is the closed search interval of one parameter.
type Bound struct {
	Name string
	Min  float64
	Max  float64
}

// Width returns Max - Min.
func (b Bound) Width() float64 {
	return b.Max - b.Min
}

// Contains reports whether v lies in [Min, Max].
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// BoundSpec is the immutable search space: bounds sorted by parameter name.
// The sort order is the canonical key order used for display and for
// vector encodings of candidates.
type BoundSpec struct {
	bounds []Bound
	index  map[string]int
}

// NewBoundSpec builds a BoundSpec from a name → (min, max) mapping.
// The Name field of each value is overwritten by its map key.
func NewBoundSpec(ranges map[string]Bound) (BoundSpec, error) {
	bounds := make([]Bound, 0, len(ranges))
	for name, b := range ranges {
		if name == "" {
			return BoundSpec{}, fmt.Errorf("bound with empty parameter name")
		}
		if name == idKey {
			return BoundSpec{}, fmt.Errorf("bound %q: name is reserved for the candidate id", name)
		}
		if !isFinite(b.Min) || !isFinite(b.Max) {
			return BoundSpec{}, fmt.Errorf("bound %q: limits must be finite, got [%v, %v]", name, b.Min, b.Max)
		}
		if b.Min > b.Max {
			return BoundSpec{}, fmt.Errorf("bound %q: min %v exceeds max %v", name, b.Min, b.Max)
		}
		b.Name = name
		bounds = append(bounds, b)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].Name < bounds[j].Name })

	index := make(map[string]int, len(bounds))
	for i, b := range bounds {
		index[b.Name] = i
	}
	return BoundSpec{bounds: bounds, index: index}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Keys returns the parameter names in alphabetical order.
func (s BoundSpec) Keys() []string {
	keys := make([]string, len(s.bounds))
	for i, b := range s.bounds {
		keys[i] = b.Name
	}
	return keys
}

// Bounds returns the bounds in key order.
func (s BoundSpec) Bounds() []Bound {
	out := make([]Bound, len(s.bounds))
	copy(out, s.bounds)
	return out
}

// Len returns the number of declared parameters.
func (s BoundSpec) Len() int {
	return len(s.bounds)
}

// Lookup returns the bound declared for name.
func (s BoundSpec) Lookup(name string) (Bound, error) {
	i, ok := s.index[name]
	if !ok {
		return Bound{}, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	return s.bounds[i], nil
}

// Validate checks that every parameter of p is declared.
func (s BoundSpec) Validate(p Params) error {
	for _, name := range p.Names() {
		if _, err := s.Lookup(name); err != nil {
			return err
		}
	}
	return nil
}
