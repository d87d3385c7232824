package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objones25/pkemu/internal/pca"
	"github.com/objones25/pkemu/internal/regression"
	"github.com/objones25/pkemu/internal/storage/compression"
)

const fixtureDir = "../../testdata/model"

// copyFixture copies the fixture model into a temporary directory so tests can corrupt it
func copyFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	entries, err := os.ReadDir(fixtureDir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(fixtureDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), data, 0o644))
	}
	return dir
}

func rewriteJSON(t *testing.T, path string, mutate func(map[string]interface{})) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	mutate(m)
	data, err = json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadFixture(t *testing.T) {
	store, err := Load(context.Background(), filepath.Join(fixtureDir, "manifest.yaml"), LoadOptions{})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, 2, store.NumComponents())
	assert.Equal(t, 8, store.OutputDim())
	assert.Len(t, store.Ensemble(), 2)
	assert.Equal(t, 1e-4, store.KGrid()[0])
	assert.Equal(t, Interval{Min: 0.6, Max: 0.8}, store.Bounds()[0])
	assert.Equal(t, Interval{Min: 0.0, Max: 0.3}, store.Bounds()[5])
	assert.Equal(t, []float64{0.67, 0.25, 0.045, 2.1, 0.97, 0.06}, store.Scaler().Center)
	for _, r := range store.Ensemble() {
		assert.Equal(t, regression.KindGP, regression.Kind(r))
	}
	assert.Len(t, store.Fingerprint(), 16)
}

func TestStoreAccessorsReturnCopies(t *testing.T) {
	store, err := Load(context.Background(), filepath.Join(fixtureDir, "manifest.yaml"), LoadOptions{})
	require.NoError(t, err)

	k := store.KGrid()
	k[0] = -1
	assert.Equal(t, 1e-4, store.KGrid()[0])

	s := store.Scaler()
	s.Scale[0] = 0
	assert.Equal(t, 0.05, store.Scaler().Scale[0])

	e := store.Ensemble()
	e[0] = nil
	assert.NotNil(t, store.Ensemble()[0])
}

func TestLoadCompressedArtifacts(t *testing.T) {
	dir := copyFixture(t)
	c := &compression.Compressor{Threshold: 0}
	for _, name := range []string{"gps.json", "pca.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		gz, err := c.Compress(data)
		require.NoError(t, err)
		require.True(t, compression.IsCompressed(gz))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), gz, 0o644))
	}

	store, err := Load(context.Background(), filepath.Join(dir, "manifest.yaml"), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.NumComponents())

	plain, err := Load(context.Background(), filepath.Join(fixtureDir, "manifest.yaml"), LoadOptions{})
	require.NoError(t, err)
	assert.NotEqual(t, plain.Fingerprint(), store.Fingerprint())
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		corrupt  func(t *testing.T, dir string)
	}{
		{
			name:     "gp count differs from component count",
			artifact: "regressors",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "gps.json"), func(m map[string]interface{}) {
					regs := m["regressors"].([]interface{})
					m["regressors"] = regs[:1]
				})
			},
		},
		{
			name:     "k-grid length differs from output dimension",
			artifact: "k_grid",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "k_grid.json"), []byte("[0.1, 1, 10]"), 0o644))
			},
		},
		{
			name:     "k-grid not increasing",
			artifact: "k_grid",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "k_grid.json"),
					[]byte("[1, 2, 3, 4, 5, 6, 8, 7]"), 0o644))
			},
		},
		{
			name:     "missing scaler file",
			artifact: "scaler",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.Remove(filepath.Join(dir, "scaler.json")))
			},
		},
		{
			name:     "scaler with zero scale",
			artifact: "scaler",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "scaler.json"), func(m map[string]interface{}) {
					m["scale"] = []float64{1, 1, 0, 1, 1, 1}
				})
			},
		},
		{
			name:     "scaler with five dimensions",
			artifact: "scaler",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "scaler.json"), func(m map[string]interface{}) {
					m["center"] = []float64{1, 1, 1, 1, 1}
				})
			},
		},
		{
			name:     "malformed pca",
			artifact: "pca",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "pca.json"), []byte("{not json"), 0o644))
			},
		},
		{
			name:     "ragged pca components",
			artifact: "pca",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "pca.json"), func(m map[string]interface{}) {
					m["components"] = [][]float64{{1, 0, 0, 0, 0, 0, 0, 0}, {1}}
				})
			},
		},
		{
			name:     "missing bound",
			artifact: "bounds",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "param_bounds.json"), func(m map[string]interface{}) {
					delete(m, "mnu_bounds")
				})
			},
		},
		{
			name:     "inverted bound",
			artifact: "bounds",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "param_bounds.json"), func(m map[string]interface{}) {
					m["h_bounds"] = []float64{0.9, 0.5}
				})
			},
		},
		{
			name:     "gp trained on wrong dimension",
			artifact: "regressors",
			corrupt: func(t *testing.T, dir string) {
				rewriteJSON(t, filepath.Join(dir, "gps.json"), func(m map[string]interface{}) {
					reg := m["regressors"].([]interface{})[0].(map[string]interface{})
					reg["x_train"] = [][]float64{{0, 0, 0}}
				})
			},
		},
		{
			name:     "manifest without pca",
			artifact: "pca",
			corrupt: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"),
					[]byte("scaler: scaler.json\nregressors: gps.json\nk_grid: k_grid.json\nbounds: param_bounds.json\n"), 0o644))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := copyFixture(t)
			tt.corrupt(t, dir)

			store, err := Load(context.Background(), filepath.Join(dir, "manifest.yaml"), LoadOptions{})
			require.Error(t, err)
			assert.Nil(t, store)
			assert.ErrorIs(t, err, ErrArtifactLoad)
			assert.True(t, IsArtifactLoad(err))

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.artifact, le.Artifact)
		})
	}
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), LoadOptions{})
	assert.ErrorIs(t, err, ErrArtifactLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPathsCancelled(t *testing.T) {
	paths, err := ReadManifest(filepath.Join(fixtureDir, "manifest.yaml"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadPaths(ctx, paths, LoadOptions{})
	assert.ErrorIs(t, err, ErrArtifactLoad)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidatesInMemoryArtifacts(t *testing.T) {
	scaler := Scaler{Center: make([]float64, 6), Scale: []float64{1, 1, 1, 1, 1, 1}}
	basis, err := pca.NewBasis([]float64{0, 0, 0}, [][]float64{{1, 0, 0}}, nil, false)
	require.NoError(t, err)
	ensemble := regression.Ensemble{regression.NewConstantRegressor(0)}
	kGrid := []float64{0.1, 1, 10}
	var bounds Bounds
	for i := range bounds {
		bounds[i] = Interval{Min: -1, Max: 1}
	}

	store, err := New(scaler, basis, ensemble, kGrid, bounds)
	require.NoError(t, err)
	assert.Equal(t, 1, store.NumComponents())
	assert.Empty(t, store.Fingerprint())

	_, err = New(scaler, basis, regression.Ensemble{}, kGrid, bounds)
	assert.ErrorIs(t, err, ErrArtifactLoad)

	_, err = New(scaler, basis, regression.Ensemble{nil}, kGrid, bounds)
	assert.ErrorIs(t, err, ErrArtifactLoad)

	_, err = New(scaler, nil, ensemble, kGrid, bounds)
	assert.ErrorIs(t, err, ErrArtifactLoad)

	_, err = New(scaler, basis, ensemble, []float64{-1, 1, 10}, bounds)
	assert.ErrorIs(t, err, ErrArtifactLoad)
}

func TestBounds(t *testing.T) {
	var b Bounds
	for i := range b {
		b[i] = Interval{Min: 0, Max: 1}
	}

	assert.Empty(t, b.Outside([]float64{0, 0.5, 1, 0.2, 0.3, 0.4}))
	assert.Equal(t, []int{1, 5}, b.Outside([]float64{0, 1.5, 1, 0.2, 0.3, -0.1}))
	assert.Equal(t, []float64{0, 1, 1, 0.2, 0.3, 0}, b.Clamp([]float64{0, 1.5, 1, 0.2, 0.3, -0.1}))
	assert.InDelta(t, 0.02, b[0].Step(50), 1e-15)
	assert.Equal(t, 0.0, b[0].Step(0))
}

func TestScalerTransform(t *testing.T) {
	s := Scaler{
		Center: []float64{1, 2, 3, 4, 5, 6},
		Scale:  []float64{2, 2, 2, 2, 2, 0.5},
	}
	require.NoError(t, s.validate())
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 2}, s.Transform([]float64{1, 2, 3, 4, 5, 7}))
}

func TestHashModelFiles(t *testing.T) {
	dir := t.TempDir()
	specs := []regression.Spec{
		{Kind: regression.KindGP},
		{Kind: regression.KindONNX, ONNX: &regression.ONNXSpec{Path: "gp_1.onnx"}},
	}

	digest := func(model string) []byte {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gp_1.onnx"), []byte(model), 0o644))
		h := sha256.New()
		require.NoError(t, hashModelFiles(specs, dir, h))
		return h.Sum(nil)
	}

	first := digest("model-a")
	assert.Equal(t, first, digest("model-a"))
	assert.NotEqual(t, first, digest("model-b"), "replacing a model must change the digest")

	require.NoError(t, os.Remove(filepath.Join(dir, "gp_1.onnx")))
	err := hashModelFiles(specs, dir, sha256.New())
	assert.ErrorIs(t, err, os.ErrNotExist)

	assert.NoError(t, hashModelFiles(specs, dir, nil))
}

func TestLoadMissingONNXModel(t *testing.T) {
	dir := copyFixture(t)
	rewriteJSON(t, filepath.Join(dir, "gps.json"), func(m map[string]interface{}) {
		regs := m["regressors"].([]interface{})
		regs[0] = map[string]interface{}{
			"kind": "onnx",
			"onnx": map[string]interface{}{"path": "missing.onnx"},
		}
	})

	_, err := Load(context.Background(), filepath.Join(dir, "manifest.yaml"), LoadOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrArtifactLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "regressors", le.Artifact)
}
