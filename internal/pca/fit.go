package pca

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// FitConfig controls how many components Fit keeps
type FitConfig struct {
	NumComponents int     // Exact number of components, takes precedence when > 0
	MinVariance   float64 // Fraction of total variance to preserve otherwise
}

// DefaultFitConfig returns the default fit configuration
func DefaultFitConfig() FitConfig {
	return FitConfig{
		MinVariance: 0.999,
	}
}

// Fit computes a basis from samples through an eigendecomposition of their covariance.
// Components are ordered by decreasing explained variance.
func Fit(samples [][]float64, cfg FitConfig) (*Basis, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", len(samples))
	}

	rows := len(samples)
	cols := len(samples[0])
	data := make([]float64, 0, rows*cols)
	for i, s := range samples {
		if len(s) != cols {
			return nil, fmt.Errorf("sample %d has inconsistent dimensions", i)
		}
		data = append(data, s...)
	}
	X := mat.NewDense(rows, cols, data)

	// Center the data
	means := make([]float64, cols)
	for j := 0; j < cols; j++ {
		mean := mat.Sum(X.ColView(j)) / float64(rows)
		means[j] = mean
		for i := 0; i < rows; i++ {
			X.Set(i, j, X.At(i, j)-mean)
		}
	}

	var covDense mat.Dense
	covDense.Mul(X.T(), X)
	covDense.Scale(1/float64(rows-1), &covDense)

	cov := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := i; j < cols; j++ {
			cov.SetSym(i, j, covDense.At(i, j))
		}
	}

	var eigen mat.EigenSym
	if ok := eigen.Factorize(cov, true); !ok {
		return nil, fmt.Errorf("eigendecomposition failed")
	}

	eigenValues := eigen.Values(nil)
	var eigenVectors mat.Dense
	eigen.VectorsTo(&eigenVectors)

	indices := make([]int, len(eigenValues))
	for i := range indices {
		indices[i] = i
	}
	sort.Slice(indices, func(i, j int) bool {
		return eigenValues[indices[i]] > eigenValues[indices[j]]
	})

	totalVariance := 0.0
	for _, val := range eigenValues {
		if val > 0 {
			totalVariance += val
		}
	}

	numComponents := cfg.NumComponents
	if numComponents <= 0 {
		explained := 0.0
		for i, idx := range indices {
			if totalVariance > 0 {
				explained += eigenValues[idx] / totalVariance
			}
			numComponents = i + 1
			if explained >= cfg.MinVariance {
				break
			}
		}
	}
	if numComponents > cols {
		numComponents = cols
	}

	components := make([][]float64, numComponents)
	variance := make([]float64, numComponents)
	for i := 0; i < numComponents; i++ {
		components[i] = mat.Col(nil, indices[i], &eigenVectors)
		variance[i] = eigenValues[indices[i]]
		if variance[i] < 0 {
			variance[i] = 0
		}
	}

	return NewBasis(means, components, variance, false)
}
