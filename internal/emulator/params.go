package emulator

import (
	"fmt"
	"math"
	"strings"

	"github.com/objones25/pkemu/internal/artifacts"
)

// NumParameters is the length of every parameter vector
const NumParameters = artifacts.NumParameters

// ParameterNames lists the parameters in vector order
var ParameterNames = artifacts.ParameterNames

// ParameterVector holds {h, Omega_c, Omega_b, A_s x 1e9, n_s, sum m_nu} in that order
type ParameterVector []float64

// DefaultParameters returns the reference cosmology the UI starts from
func DefaultParameters() ParameterVector {
	return ParameterVector{0.67, 0.25, 0.045, 2.1, 0.97, 0.06}
}

// Validate checks the vector length and that every component is finite
func (p ParameterVector) Validate() error {
	if len(p) != NumParameters {
		return fmt.Errorf("%w: expected %d parameters, got %d", ErrInvalidInput, NumParameters, len(p))
	}
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", ErrInvalidInput, ParameterNames[i], v)
		}
	}
	return nil
}

// String formats the vector as name=value pairs
func (p ParameterVector) String() string {
	parts := make([]string, len(p))
	for i, v := range p {
		name := fmt.Sprintf("p%d", i)
		if i < NumParameters {
			name = ParameterNames[i]
		}
		parts[i] = fmt.Sprintf("%s=%g", name, v)
	}
	return strings.Join(parts, " ")
}

// PowerSpectrum holds P(k) in (Mpc/h)^3 on the store's k-grid
type PowerSpectrum []float64

// ScaleByH3 returns the spectrum multiplied by h^3, converting (Mpc/h)^3 to Mpc^3
func (ps PowerSpectrum) ScaleByH3(h float64) PowerSpectrum {
	h3 := h * h * h
	out := make(PowerSpectrum, len(ps))
	for i, v := range ps {
		out[i] = v * h3
	}
	return out
}

// Units selects the volume unit of a returned spectrum
type Units string

const (
	UnitsH3   Units = "h3"   // (Mpc/h)^3, the emulator's native unit
	UnitsMpc3 Units = "mpc3" // Mpc^3
)

// ParseUnits parses a unit name; the empty string selects UnitsH3
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case "", UnitsH3:
		return UnitsH3, nil
	case UnitsMpc3:
		return UnitsMpc3, nil
	default:
		return "", fmt.Errorf("%w: unknown units %q", ErrInvalidInput, s)
	}
}

// In converts a native spectrum predicted at params to the requested units
func (ps PowerSpectrum) In(units Units, params ParameterVector) PowerSpectrum {
	if units == UnitsMpc3 && len(params) > 0 {
		return ps.ScaleByH3(params[0])
	}
	return append(PowerSpectrum(nil), ps...)
}
