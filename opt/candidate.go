package opt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// idKey is the reserved JSON key carrying a candidate's id next to its parameters.
const idKey = "id"

// Params maps parameter names to proposed values.
type Params map[string]float64

// Names returns the parameter names in alphabetical order.
func (p Params) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Candidate is one proposed, uniquely identified point in the search space.
// It is immutable: accessors return copies.
type Candidate struct {
	id     int
	params Params
}

// NewCandidate creates a Candidate with the given id. params is copied.
func NewCandidate(id int, params Params) Candidate {
	cp := make(Params, len(params))
	for k, v := range params {
		cp[k] = v
	}
	return Candidate{id: id, params: cp}
}

// ID returns the id assigned by the coordinator.
func (c Candidate) ID() int {
	return c.id
}

// Param returns the value of one parameter.
func (c Candidate) Param(name string) (float64, bool) {
	v, ok := c.params[name]
	return v, ok
}

// Params returns a copy of the parameter mapping.
func (c Candidate) Params() Params {
	cp := make(Params, len(c.params))
	for k, v := range c.params {
		cp[k] = v
	}
	return cp
}

// Equal reports whether both candidates carry the same id and the same parameter mapping.
func (c Candidate) Equal(o Candidate) bool {
	if c.id != o.id || len(c.params) != len(o.params) {
		return false
	}
	for k, v := range c.params {
		ov, ok := o.params[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Vector returns the candidate's values in the BoundSpec key order.
// Parameters absent from the candidate are reported as NaN.
func (c Candidate) Vector(spec BoundSpec) []float64 {
	keys := spec.Keys()
	vec := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := c.params[k]
		if !ok {
			v = math.NaN()
		}
		vec[i] = v
	}
	return vec
}

func (c Candidate) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("candidate#%d", c.id)
	}
	return string(data)
}

// MarshalJSON encodes the candidate as a flat object of parameters plus "id".
func (c Candidate) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(c.params)+1)
	for k, v := range c.params {
		flat[k] = v
	}
	flat[idKey] = c.id
	return json.Marshal(flat)
}

// UnmarshalJSON decodes a flat candidate object. The "id" field is required and
// must be an integer; every other field must be a number.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("candidate must be a JSON object")
	}

	idVal, ok := raw[idKey]
	if !ok {
		return fmt.Errorf("candidate has no %q field", idKey)
	}
	idNum, ok := idVal.(json.Number)
	if !ok {
		return fmt.Errorf("candidate %q must be a number, got %T", idKey, idVal)
	}
	id, err := idNum.Int64()
	if err != nil {
		return fmt.Errorf("candidate %q must be an integer: %w", idKey, err)
	}

	params := make(Params, len(raw)-1)
	for k, v := range raw {
		if k == idKey {
			continue
		}
		num, ok := v.(json.Number)
		if !ok {
			return fmt.Errorf("parameter %q must be a number, got %T", k, v)
		}
		f, err := num.Float64()
		if err != nil {
			return fmt.Errorf("parameter %q: %w", k, err)
		}
		params[k] = f
	}
	c.id = int(id)
	c.params = params
	return nil
}

// Observation is the recorded outcome of evaluating a Candidate.
// Result is the trainer's evaluation payload, kept verbatim.
type Observation struct {
	Candidate         Candidate       `json:"candidate"`
	Result            json.RawMessage `json:"result"`
	ContentionFailure bool            `json:"contention_failure"`
}
