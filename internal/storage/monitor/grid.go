package monitor

import (
	"github.com/objones25/pkemu/internal/artifacts"
	"github.com/objones25/pkemu/internal/emulator"
)

// DefaultSteps is the number of slider steps per parameter in the UI
const DefaultSteps = 50

// SliderGrid returns the parameter vectors a user can reach by moving one
// slider at a time away from the defaults: for each parameter, steps+1
// evenly spaced values across its bounds with the other parameters held at
// their defaults. The defaults themselves come first.
func SliderGrid(bounds artifacts.Bounds, defaults emulator.ParameterVector, steps int) []emulator.ParameterVector {
	if steps <= 0 {
		steps = DefaultSteps
	}

	grid := make([]emulator.ParameterVector, 0, 1+len(bounds)*(steps+1))
	grid = append(grid, append(emulator.ParameterVector(nil), defaults...))
	for i, iv := range bounds {
		step := iv.Step(steps)
		for j := 0; j <= steps; j++ {
			v := iv.Min + float64(j)*step
			if j == steps {
				v = iv.Max
			}
			p := append(emulator.ParameterVector(nil), defaults...)
			p[i] = v
			grid = append(grid, p)
		}
	}
	return grid
}
