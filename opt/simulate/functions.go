package simulate

import (
	"fmt"
	"math"
	"sort"
)

// Function is a synthetic training objective over unit-cube coordinates, one
// coordinate per bounded parameter in key order. Lower is better.
type Function struct {
	Name    string
	MinDims int
	Eval    func(u []float64) float64
}

// functions is the registry of synthetic objectives, keyed by name.
var functions = map[string]Function{
	"sphere":     {Name: "sphere", MinDims: 1, Eval: sphere},
	"rosenbrock": {Name: "rosenbrock", MinDims: 2, Eval: rosenbrock},
	"branin":     {Name: "branin", MinDims: 2, Eval: branin},
}

// ValidFunctionNames returns the registered objective names, sorted.
func ValidFunctionNames() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupFunction returns the objective registered under name.
func LookupFunction(name string) (Function, error) {
	f, ok := functions[name]
	if !ok {
		return Function{}, fmt.Errorf("unknown objective %q; valid options: %v", name, ValidFunctionNames())
	}
	return f, nil
}

// sphere has its minimum 0 at u_i = 0.3.
func sphere(u []float64) float64 {
	var sum float64
	for _, v := range u {
		d := v - 0.3
		sum += d * d
	}
	return sum
}

// rosenbrock maps every coordinate to [-2, 2]; minimum 0 at x_i = 1.
func rosenbrock(u []float64) float64 {
	var sum float64
	for i := 0; i+1 < len(u); i++ {
		x, y := 4*u[i]-2, 4*u[i+1]-2
		sum += 100*(y-x*x)*(y-x*x) + (1-x)*(1-x)
	}
	return sum
}

// branin uses the first two coordinates mapped to x1 in [-5, 10], x2 in [0, 15].
// Global minimum is about 0.397887.
func branin(u []float64) float64 {
	x1 := 15*u[0] - 5
	x2 := 15 * u[1]
	const (
		a = 1.0
		r = 6.0
		s = 10.0
	)
	b := 5.1 / (4 * math.Pi * math.Pi)
	c := 5 / math.Pi
	t := 1 / (8 * math.Pi)
	q := x2 - b*x1*x1 + c*x1 - r
	return a*q*q + s*(1-t)*math.Cos(x1) + s
}
