package artifacts

import (
	"errors"
	"fmt"
)

// ErrArtifactLoad matches every error returned while loading or validating artifacts.
// A process that sees it must not serve predictions.
var ErrArtifactLoad = errors.New("artifact load failed")

// LoadError describes which artifact could not be loaded
type LoadError struct {
	Artifact string // Logical artifact name (scaler, regressors, pca, k_grid, bounds, manifest)
	Path     string // File path, empty for in-memory artifacts
	Err      error  // Underlying error
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (%s): %v", ErrArtifactLoad, e.Artifact, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrArtifactLoad, e.Artifact, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is makes every LoadError match ErrArtifactLoad
func (e *LoadError) Is(target error) bool {
	return target == ErrArtifactLoad
}

func newLoadError(artifact, path string, err error) error {
	return &LoadError{Artifact: artifact, Path: path, Err: err}
}

// IsArtifactLoad checks if an error is an artifact load error
func IsArtifactLoad(err error) bool {
	return errors.Is(err, ErrArtifactLoad)
}
