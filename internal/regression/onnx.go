package regression

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXSpec points at an ONNX-exported regressor (for example a Gaussian
// process converted with skl2onnx)
type ONNXSpec struct {
	Path       string `json:"path"`
	InputName  string `json:"input_name,omitempty"`
	OutputName string `json:"output_name,omitempty"`
}

// ResolvePath returns the model path, joined to baseDir when relative
func (s ONNXSpec) ResolvePath(baseDir string) string {
	if filepath.IsAbs(s.Path) {
		return s.Path
	}
	return filepath.Join(baseDir, s.Path)
}

const (
	defaultONNXInput  = "X"
	defaultONNXOutput = "GPmean"
)

var (
	runtimeMu     sync.Mutex
	runtimeInited bool
)

// EnsureRuntime initializes the ONNX runtime environment once per process
func EnsureRuntime(libPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInited {
		return nil
	}
	if libPath == "" {
		return fmt.Errorf("ONNX runtime library path not configured")
	}

	info, err := os.Stat(libPath)
	if err != nil {
		return fmt.Errorf("failed to access library: %w", err)
	}
	log.Debug().
		Str("lib_path", libPath).
		Int64("size", info.Size()).
		Msg("Initializing ONNX Runtime")

	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize environment: %w", err)
	}
	if !ort.IsInitialized() {
		return fmt.Errorf("runtime not initialized after successful initialization call")
	}

	runtimeInited = true
	log.Debug().
		Str("version", ort.GetVersion()).
		Msg("ONNX Runtime initialized successfully")
	return nil
}

// ShutdownRuntime destroys the ONNX runtime environment if it was initialized
func ShutdownRuntime() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeInited && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			log.Warn().Err(err).Msg("Failed to destroy ONNX runtime environment")
		}
	}
	runtimeInited = false
}

// ONNXRegressor runs a single-output ONNX model on a [1, dim] float32 input.
// A session owns its tensors, so Predict calls are serialized.
type ONNXRegressor struct {
	mu      sync.Mutex
	path    string
	dim     int
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// NewONNXRegressor loads the model at spec.Path, resolving relative paths
// against baseDir. The runtime must already be initialized.
func NewONNXRegressor(spec ONNXSpec, dim int, baseDir string) (*ONNXRegressor, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("%w: onnx regressor without path", ErrInvalidSpec)
	}
	path := spec.ResolvePath(baseDir)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("onnx model %s: %w", path, err)
	}

	inputName := spec.InputName
	if inputName == "" {
		inputName = defaultONNXInput
	}
	outputName := spec.OutputName
	if outputName == "" {
		outputName = defaultONNXOutput
	}

	input, err := ort.NewTensor(ort.NewShape(1, int64(dim)), make([]float32, dim))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewAdvancedSession(path,
		[]string{inputName}, []string{outputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("model_path", path).
		Str("input", inputName).
		Str("output", outputName).
		Msg("ONNX regressor loaded")

	return &ONNXRegressor{
		path:    path,
		dim:     dim,
		session: session,
		input:   input,
		output:  output,
	}, nil
}

// Predict implements Regressor
func (r *ONNXRegressor) Predict(x []float64) (float64, error) {
	if len(x) != r.dim {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrDimension, len(x), r.dim)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return 0, fmt.Errorf("onnx regressor %s is closed", r.path)
	}

	in := r.input.GetData()
	for i, v := range x {
		in[i] = float32(v)
	}
	if err := r.session.Run(); err != nil {
		return 0, fmt.Errorf("onnx run %s: %w", r.path, err)
	}

	y := float64(r.output.GetData()[0])
	if err := checkFinite(y); err != nil {
		return 0, err
	}
	return y, nil
}

// Close releases the session and its tensors
func (r *ONNXRegressor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.session == nil {
		return nil
	}
	var lastErr error
	if err := r.session.Destroy(); err != nil {
		lastErr = err
	}
	if err := r.input.Destroy(); err != nil {
		lastErr = err
	}
	if err := r.output.Destroy(); err != nil {
		lastErr = err
	}
	r.session = nil
	return lastErr
}
