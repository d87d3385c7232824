package artifacts

import (
	"encoding/json"
	"fmt"
	"hash"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/objones25/pkemu/internal/pca"
	"github.com/objones25/pkemu/internal/regression"
	"github.com/objones25/pkemu/internal/storage/compression"
)

// Paths names the persisted artifacts. Files are JSON, optionally gzip-compressed.
type Paths struct {
	Scaler     string `yaml:"scaler"`
	Regressors string `yaml:"regressors"`
	PCA        string `yaml:"pca"`
	KGrid      string `yaml:"k_grid"`
	Bounds     string `yaml:"bounds"`
}

// ReadManifest parses a YAML manifest and resolves relative paths against its directory
func ReadManifest(path string) (Paths, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Paths{}, newLoadError("manifest", path, err)
	}

	var p Paths
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Paths{}, newLoadError("manifest", path, fmt.Errorf("failed to parse manifest: %w", err))
	}

	dir := filepath.Dir(path)
	for _, f := range []*string{&p.Scaler, &p.Regressors, &p.PCA, &p.KGrid, &p.Bounds} {
		if *f == "" {
			continue
		}
		if !filepath.IsAbs(*f) {
			*f = filepath.Join(dir, *f)
		}
	}
	return p, p.validate()
}

func (p Paths) validate() error {
	fields := []struct {
		name string
		path string
	}{
		{"scaler", p.Scaler},
		{"regressors", p.Regressors},
		{"pca", p.PCA},
		{"k_grid", p.KGrid},
		{"bounds", p.Bounds},
	}
	for _, f := range fields {
		if f.path == "" {
			return newLoadError(f.name, "", fmt.Errorf("path not specified"))
		}
	}
	return nil
}

// File formats

type pcaFile struct {
	Mean              []float64   `json:"mean"`
	Components        [][]float64 `json:"components"`
	ExplainedVariance []float64   `json:"explained_variance,omitempty"`
	Whiten            bool        `json:"whiten,omitempty"`
}

type regressorsFile struct {
	Regressors []regression.Spec `json:"regressors"`
}

var decompressor = &compression.Compressor{}

// readJSON decodes a possibly compressed JSON artifact, feeding the raw bytes to h when set
func readJSON(artifact, path string, v interface{}, h hash.Hash) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newLoadError(artifact, path, err)
	}
	if h != nil {
		h.Write(data)
	}
	data, err = decompressor.Decompress(data)
	if err != nil {
		return newLoadError(artifact, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return newLoadError(artifact, path, fmt.Errorf("failed to decode: %w", err))
	}
	return nil
}

func readScaler(path string, h hash.Hash) (Scaler, error) {
	var s Scaler
	if err := readJSON("scaler", path, &s, h); err != nil {
		return Scaler{}, err
	}
	return s, nil
}

func readBasis(path string, h hash.Hash) (*pca.Basis, error) {
	var f pcaFile
	if err := readJSON("pca", path, &f, h); err != nil {
		return nil, err
	}
	b, err := pca.NewBasis(f.Mean, f.Components, f.ExplainedVariance, f.Whiten)
	if err != nil {
		return nil, newLoadError("pca", path, err)
	}
	return b, nil
}

func readKGrid(path string, h hash.Hash) ([]float64, error) {
	var k []float64
	if err := readJSON("k_grid", path, &k, h); err != nil {
		return nil, err
	}
	return k, nil
}

// readBounds reads {"h_bounds": [min, max], "Omega_c_bounds": [...], ...}
func readBounds(path string, h hash.Hash) (Bounds, error) {
	var raw map[string][]float64
	if err := readJSON("bounds", path, &raw, h); err != nil {
		return Bounds{}, err
	}

	var b Bounds
	for i, name := range ParameterNames {
		pair, ok := raw[name+"_bounds"]
		if !ok {
			return Bounds{}, newLoadError("bounds", path, fmt.Errorf("missing %s_bounds", name))
		}
		if len(pair) != 2 {
			return Bounds{}, newLoadError("bounds", path,
				fmt.Errorf("%s_bounds must have 2 values, got %d", name, len(pair)))
		}
		b[i] = Interval{Min: pair[0], Max: pair[1]}
	}
	return b, nil
}

func readRegressors(path string, opts LoadOptions, h hash.Hash) (regression.Ensemble, error) {
	var f regressorsFile
	if err := readJSON("regressors", path, &f, h); err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(path)
	if err := hashModelFiles(f.Regressors, baseDir, h); err != nil {
		return nil, newLoadError("regressors", path, err)
	}

	buildOpts := regression.BuildOptions{
		Dim:             NumParameters,
		BaseDir:         baseDir,
		ONNXLibraryPath: opts.ONNXLibraryPath,
	}
	ensemble := make(regression.Ensemble, 0, len(f.Regressors))
	for i, spec := range f.Regressors {
		r, err := regression.Build(spec, buildOpts)
		if err != nil {
			ensemble.Close()
			return nil, newLoadError("regressors", path, fmt.Errorf("regressor %d: %w", i, err))
		}
		ensemble = append(ensemble, r)
	}
	return ensemble, nil
}

// hashModelFiles feeds the external model files referenced by specs into h, so
// replacing a model changes the store fingerprint
func hashModelFiles(specs []regression.Spec, baseDir string, h hash.Hash) error {
	if h == nil {
		return nil
	}
	for i, spec := range specs {
		if spec.Kind != regression.KindONNX || spec.ONNX == nil || spec.ONNX.Path == "" {
			continue
		}
		data, err := os.ReadFile(spec.ONNX.ResolvePath(baseDir))
		if err != nil {
			return fmt.Errorf("regressor %d: %w", i, err)
		}
		h.Write(data)
	}
	return nil
}
