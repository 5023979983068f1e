// Package inference - ONNX segmentation model sessions.
//
// The model is treated as a black box: a persisted ONNX file mapping a batch
// of single-channel ultrasound frames to a batch of per-pixel class
// probabilities. Everything downstream only assumes the class dimension of
// the output.
package inference

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

// Config holds the settings for a segmentation model session.
type Config struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string `json:"model_path"               yaml:"model_path"`

	// LibraryPath optionally points at the onnxruntime shared library. Empty
	// means the platform default lookup.
	LibraryPath string `json:"library_path,omitempty"   yaml:"library_path,omitempty"`

	// InputName is the model's input tensor name.
	InputName string `json:"input_name"               yaml:"input_name"`

	// OutputName is the model's output tensor name.
	OutputName string `json:"output_name"              yaml:"output_name"`

	// ClassCount is the expected class dimension of the model output,
	// including background.
	ClassCount int `json:"class_count"              yaml:"class_count"`

	// ApplySoftmax normalizes the model output over the class axis, for
	// models that emit raw logits instead of probabilities.
	ApplySoftmax bool `json:"apply_softmax"            yaml:"apply_softmax"`

	// IntraOpThreads bounds the threads onnxruntime may use per operator.
	// Zero leaves the runtime default in place.
	IntraOpThreads int `json:"intra_op_threads"         yaml:"intra_op_threads"`
}

// DefaultConfig returns a session configuration with the conventional
// input/output tensor names and the CAMUS class count.
func DefaultConfig() Config {
	return Config{
		InputName:  "input",
		OutputName: "output",
		ClassCount: 4,
	}
}

var (
	runtimeOnce sync.Once
	runtimeErr  error
)

// ensureRuntime initializes the onnxruntime environment once per process.
// The environment stays alive for the process lifetime.
func ensureRuntime(libraryPath string) error {
	runtimeOnce.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		runtimeErr = ort.InitializeEnvironment()
	})
	return errors.Wrap(runtimeErr, "initializing onnxruntime")
}

// Session runs a persisted segmentation model over image batches. It holds
// configuration only; the underlying onnxruntime session is created per
// Predict call since an evaluation run is a single batch.
type Session struct {
	config Config
}

// NewSession validates the configuration and returns a session. The
// onnxruntime environment is initialized lazily on first prediction.
//
// Arguments:
//   - config: Session settings; zero-value names fall back to DefaultConfig's.
//
// Returns:
//   - *Session: The configured session.
//   - error: When the model file is missing or the configuration is invalid.
func NewSession(config Config) (*Session, error) {
	if config.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, errors.Errorf("model file not found: %s", config.ModelPath)
	}
	if config.ClassCount < 2 {
		return nil, errors.Errorf("class count must be at least 2, got %d", config.ClassCount)
	}
	if config.InputName == "" {
		config.InputName = DefaultConfig().InputName
	}
	if config.OutputName == "" {
		config.OutputName = DefaultConfig().OutputName
	}
	if config.IntraOpThreads < 0 {
		return nil, errors.Errorf("intra-op thread count cannot be negative, got %d", config.IntraOpThreads)
	}
	return &Session{config: config}, nil
}

// Config returns the session's effective configuration.
func (s *Session) Config() Config {
	return s.config
}

// Predict maps a frame batch to a per-pixel class probability batch.
//
// Arguments:
//   - images: Float32 tensor of shape (samples, height, width, 1) in [0, 1].
//
// Returns:
//   - *tensor.Dense: Probabilities of shape (samples, height, width, classes).
//   - error: On malformed input or any runtime failure.
func (s *Session) Predict(images *tensor.Dense) (*tensor.Dense, error) {
	shape := images.Shape()
	if len(shape) != 4 || shape[3] != 1 {
		return nil, errors.Errorf("expected an image batch of shape (samples, height, width, 1), got %v", shape)
	}
	data, ok := images.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("expected a float32 image batch, got %v", images.Dtype())
	}
	samples, height, width := shape[0], shape[1], shape[2]

	if err := ensureRuntime(s.config.LibraryPath); err != nil {
		return nil, err
	}

	// A (N, H, W, 1) batch is bytewise identical to the (N, 1, H, W) layout
	// the model expects, so the backing slice feeds the input tensor as-is.
	input, err := ort.NewTensor(ort.NewShape(int64(samples), 1, int64(height), int64(width)), data)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(
		int64(samples), int64(s.config.ClassCount), int64(height), int64(width)))
	if err != nil {
		return nil, errors.Wrap(err, "creating output tensor")
	}
	defer output.Destroy()

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "creating session options")
	}
	defer options.Destroy()
	if s.config.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(s.config.IntraOpThreads); err != nil {
			return nil, errors.Wrap(err, "setting intra-op thread count")
		}
	}

	session, err := ort.NewAdvancedSession(
		s.config.ModelPath,
		[]string{s.config.InputName},
		[]string{s.config.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "creating session for %s", s.config.ModelPath)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	raw := make([]float32, samples*s.config.ClassCount*height*width)
	copy(raw, output.GetData())

	pixels := height * width
	if s.config.ApplySoftmax {
		softmaxClassAxis(raw, samples, s.config.ClassCount, pixels)
	}
	probs := chwToHWC(raw, samples, s.config.ClassCount, pixels)

	return tensor.New(
		tensor.WithShape(samples, height, width, s.config.ClassCount),
		tensor.WithBacking(probs),
	), nil
}
