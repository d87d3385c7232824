// Package artifacts loads and exposes the immutable pre-trained state of the
// emulator: the input scaler, the per-component regressors, the PCA basis,
// the k-grid and the advisory parameter bounds.
package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/objones25/pkemu/internal/pca"
	"github.com/objones25/pkemu/internal/regression"
)

// LoadOptions holds settings needed to materialize some regressor kinds
type LoadOptions struct {
	ONNXLibraryPath string
}

// Store is the loaded model state. It is never mutated after construction and
// may be shared by any number of goroutines.
type Store struct {
	scaler   Scaler
	basis    *pca.Basis
	ensemble regression.Ensemble
	kGrid    []float64
	bounds   Bounds

	// fingerprint identifies the artifact files a store was loaded from
	fingerprint string
}

// New builds a store from in-memory artifacts and checks that they are consistent
func New(scaler Scaler, basis *pca.Basis, ensemble regression.Ensemble, kGrid []float64, bounds Bounds) (*Store, error) {
	if err := scaler.validate(); err != nil {
		return nil, newLoadError("scaler", "", err)
	}
	if basis == nil {
		return nil, newLoadError("pca", "", fmt.Errorf("missing PCA basis"))
	}
	if len(ensemble) != basis.NumComponents() {
		return nil, newLoadError("regressors", "",
			fmt.Errorf("%d regressors for %d principal components", len(ensemble), basis.NumComponents()))
	}
	for i, r := range ensemble {
		if r == nil {
			return nil, newLoadError("regressors", "", fmt.Errorf("regressor %d is nil", i))
		}
	}
	if len(kGrid) != basis.Dim() {
		return nil, newLoadError("k_grid", "",
			fmt.Errorf("k-grid has %d points, PCA output dimension is %d", len(kGrid), basis.Dim()))
	}
	for i, k := range kGrid {
		if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
			return nil, newLoadError("k_grid", "", fmt.Errorf("k[%d] = %v is not a positive wavenumber", i, k))
		}
		if i > 0 && k <= kGrid[i-1] {
			return nil, newLoadError("k_grid", "", fmt.Errorf("k-grid is not strictly increasing at %d", i))
		}
	}
	if err := bounds.validate(); err != nil {
		return nil, newLoadError("bounds", "", err)
	}

	return &Store{
		scaler:   scaler.clone(),
		basis:    basis,
		ensemble: append(regression.Ensemble(nil), ensemble...),
		kGrid:    append([]float64(nil), kGrid...),
		bounds:   bounds,
	}, nil
}

// Load reads the artifacts listed in a YAML manifest
func Load(ctx context.Context, manifestPath string, opts LoadOptions) (*Store, error) {
	paths, err := ReadManifest(manifestPath)
	if err != nil {
		recordLoadError(err)
		return nil, err
	}
	return LoadPaths(ctx, paths, opts)
}

// LoadPaths reads every artifact from explicit paths. Any missing, unreadable or
// inconsistent artifact fails the whole load with an error matching ErrArtifactLoad.
func LoadPaths(ctx context.Context, paths Paths, opts LoadOptions) (store *Store, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			recordLoadError(err)
			log.Error().Err(err).Msg("Failed to load emulator artifacts")
			return
		}
		LoadDuration.Observe(time.Since(start).Seconds())
	}()

	if err := paths.validate(); err != nil {
		return nil, err
	}

	h := sha256.New()

	scaler, err := readScaler(paths.Scaler, h)
	if err != nil {
		return nil, err
	}
	basis, err := readBasis(paths.PCA, h)
	if err != nil {
		return nil, err
	}
	kGrid, err := readKGrid(paths.KGrid, h)
	if err != nil {
		return nil, err
	}
	bounds, err := readBounds(paths.Bounds, h)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, newLoadError("regressors", paths.Regressors, err)
	}
	ensemble, err := readRegressors(paths.Regressors, opts, h)
	if err != nil {
		return nil, err
	}

	store, err = New(scaler, basis, ensemble, kGrid, bounds)
	if err != nil {
		ensemble.Close()
		var le *LoadError
		if errors.As(err, &le) {
			le.Path = pathFor(paths, le.Artifact)
		}
		return nil, err
	}

	store.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]

	ModelComponents.WithLabelValues("components").Set(float64(store.NumComponents()))
	ModelComponents.WithLabelValues("k_points").Set(float64(store.OutputDim()))
	log.Info().
		Int("components", store.NumComponents()).
		Int("k_points", store.OutputDim()).
		Float64("k_min", store.kGrid[0]).
		Float64("k_max", store.kGrid[len(store.kGrid)-1]).
		Str("fingerprint", store.fingerprint).
		Dur("duration", time.Since(start)).
		Msg("Emulator artifacts loaded")

	return store, nil
}

func pathFor(paths Paths, artifact string) string {
	switch artifact {
	case "scaler":
		return paths.Scaler
	case "regressors":
		return paths.Regressors
	case "pca":
		return paths.PCA
	case "k_grid":
		return paths.KGrid
	case "bounds":
		return paths.Bounds
	default:
		return ""
	}
}

func recordLoadError(err error) {
	artifact := "unknown"
	var le *LoadError
	if errors.As(err, &le) {
		artifact = le.Artifact
	}
	LoadErrors.WithLabelValues(artifact).Inc()
}

// Scaler returns a copy of the input scaler
func (s *Store) Scaler() Scaler {
	return s.scaler.clone()
}

// Basis returns the PCA basis
func (s *Store) Basis() *pca.Basis {
	return s.basis
}

// Ensemble returns the ordered regressors
func (s *Store) Ensemble() regression.Ensemble {
	return append(regression.Ensemble(nil), s.ensemble...)
}

// KGrid returns a copy of the wavenumber grid
func (s *Store) KGrid() []float64 {
	return append([]float64(nil), s.kGrid...)
}

// Bounds returns the advisory parameter bounds
func (s *Store) Bounds() Bounds {
	return s.bounds
}

// Fingerprint returns a short digest of the artifact files, or "" for stores
// built in memory
func (s *Store) Fingerprint() string {
	return s.fingerprint
}

// NumComponents returns C
func (s *Store) NumComponents() int {
	return s.basis.NumComponents()
}

// OutputDim returns K
func (s *Store) OutputDim() int {
	return s.basis.Dim()
}

// Close releases native resources held by regressors
func (s *Store) Close() error {
	return s.ensemble.Close()
}
