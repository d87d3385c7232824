package artifacts

import (
	"fmt"
	"math"
)

// NumParameters is the length of every parameter vector
const NumParameters = 6

// ParameterNames lists the input dimensions in their fixed order:
// h, Omega_c, Omega_b, A_s x 1e9, n_s, sum of neutrino masses.
var ParameterNames = [NumParameters]string{"h", "Omega_c", "Omega_b", "Asx1e9", "ns", "mnu"}

// Interval is a closed [Min, Max] range
type Interval struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the interval
func (i Interval) Contains(v float64) bool {
	return v >= i.Min && v <= i.Max
}

// Clamp limits v to the interval
func (i Interval) Clamp(v float64) float64 {
	return math.Max(i.Min, math.Min(i.Max, v))
}

// Step returns the width of one of n equal slider steps
func (i Interval) Step(n int) float64 {
	if n <= 0 {
		return 0
	}
	return (i.Max - i.Min) / float64(n)
}

// Bounds holds one interval per input dimension. They are advisory: the
// presentation layer clamps its controls to them.
type Bounds [NumParameters]Interval

func (b Bounds) validate() error {
	for i, iv := range b {
		if math.IsNaN(iv.Min) || math.IsNaN(iv.Max) || math.IsInf(iv.Min, 0) || math.IsInf(iv.Max, 0) {
			return fmt.Errorf("%s bounds are not finite", ParameterNames[i])
		}
		if iv.Min > iv.Max {
			return fmt.Errorf("%s bounds are inverted: min %v > max %v", ParameterNames[i], iv.Min, iv.Max)
		}
	}
	return nil
}

// Outside returns the indices of the components of params outside their bounds
func (b Bounds) Outside(params []float64) []int {
	var out []int
	for i, v := range params {
		if i >= NumParameters {
			break
		}
		if !b[i].Contains(v) {
			out = append(out, i)
		}
	}
	return out
}

// Clamp returns a copy of params limited to the bounds
func (b Bounds) Clamp(params []float64) []float64 {
	out := append([]float64(nil), params...)
	for i := range out {
		if i >= NumParameters {
			break
		}
		out[i] = b[i].Clamp(out[i])
	}
	return out
}

// Scaler is an affine standardization with per-dimension center and scale
type Scaler struct {
	Center []float64 `json:"center"`
	Scale  []float64 `json:"scale"`
}

func (s Scaler) validate() error {
	if len(s.Center) != NumParameters || len(s.Scale) != NumParameters {
		return fmt.Errorf("scaler must have %d centers and scales, got %d and %d",
			NumParameters, len(s.Center), len(s.Scale))
	}
	for i := range s.Center {
		if math.IsNaN(s.Center[i]) || math.IsInf(s.Center[i], 0) {
			return fmt.Errorf("scaler center %d is %v", i, s.Center[i])
		}
		if s.Scale[i] == 0 || math.IsNaN(s.Scale[i]) || math.IsInf(s.Scale[i], 0) {
			return fmt.Errorf("scaler scale %d is %v", i, s.Scale[i])
		}
	}
	return nil
}

// Transform returns (x - center) / scale
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = (v - s.Center[i]) / s.Scale[i]
	}
	return out
}

func (s Scaler) clone() Scaler {
	return Scaler{
		Center: append([]float64(nil), s.Center...),
		Scale:  append([]float64(nil), s.Scale...),
	}
}
