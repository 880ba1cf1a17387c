package opt

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Minimize reports whether the objective is to be minimized.
func (o ObjectiveSpec) Minimize() bool {
	return o.Goal != "maximize"
}

// Value extracts the objective from an observation result. It reports false
// when the result holds no number at Path.
func (o ObjectiveSpec) Value(result json.RawMessage) (float64, bool) {
	if len(result) == 0 {
		return 0, false
	}
	var r gjson.Result
	if o.Path == "" {
		r = gjson.ParseBytes(result)
	} else {
		r = gjson.GetBytes(result, o.Path)
	}
	if r.Type != gjson.Number {
		return 0, false
	}
	return r.Float(), true
}

// Best returns the observation with the best objective value, skipping
// contention failures and results without a value.
func (o ObjectiveSpec) Best(observations []Observation) (Observation, float64, bool) {
	var (
		best     Observation
		bestVal  float64
		haveBest bool
	)
	for _, obs := range observations {
		if obs.ContentionFailure {
			continue
		}
		v, ok := o.Value(obs.Result)
		if !ok {
			continue
		}
		if !haveBest || (o.Minimize() && v < bestVal) || (!o.Minimize() && v > bestVal) {
			best, bestVal, haveBest = obs, v, true
		}
	}
	return best, bestVal, haveBest
}
