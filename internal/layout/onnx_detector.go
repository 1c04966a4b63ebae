package layout

import (
	"context"
	"fmt"
	"image"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/paragraph"
)

// Default DocLayout-YOLO settings.
const (
	DefaultInputSize     = 1024
	DefaultConfThreshold = 0.25
	DefaultNMSThreshold  = 0.45
	defaultMaxDetections = 300
)

// ONNXConfig configures an ONNXDetector.
type ONNXConfig struct {
	// ModelPath points at a .onnx file or a gzip-compressed .onnx.gz.
	ModelPath string
	// LibraryPath is the onnxruntime shared library. Empty uses the
	// platform default lookup.
	LibraryPath   string
	CacheDir      string
	InputSize     int
	ConfThreshold float64
	NMSThreshold  float64
}

var (
	runtimeMu   sync.Mutex
	runtimeRefs int
)

func acquireRuntime(libraryPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if runtimeRefs == 0 && !ort.IsInitialized() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize onnxruntime: %w", err)
		}
	}
	runtimeRefs++
	return nil
}

func releaseRuntime() {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	runtimeRefs--
	if runtimeRefs == 0 && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			logger.Warn("failed to destroy onnxruntime environment", logger.Err(err))
		}
	}
}

// ONNXDetector runs DocLayout-YOLO through onnxruntime. The session is
// bound to fixed input and output tensors, so Detect calls are serialized.
type ONNXDetector struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	pre     *Preprocessor
	post    *PostProcessor
	closed  bool
}

// NewONNXDetector loads the model and prepares a session. Any failure here
// is fatal for the run.
func NewONNXDetector(cfg ONNXConfig) (*ONNXDetector, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = DefaultInputSize
	}
	if cfg.ConfThreshold <= 0 {
		cfg.ConfThreshold = DefaultConfThreshold
	}
	if cfg.NMSThreshold <= 0 {
		cfg.NMSThreshold = DefaultNMSThreshold
	}

	modelPath, err := ResolveModel(cfg.ModelPath, cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	if err := acquireRuntime(cfg.LibraryPath); err != nil {
		return nil, err
	}

	d, err := newSession(modelPath, cfg)
	if err != nil {
		releaseRuntime()
		return nil, err
	}

	logger.Info("layout model loaded",
		logger.String("model", modelPath),
		logger.Int("inputSize", cfg.InputSize))
	return d, nil
}

func newSession(modelPath string, cfg ONNXConfig) (*ONNXDetector, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model has no inputs or outputs")
	}

	pre := NewPreprocessor(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(pre.Shape()...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](outputShape(outputs[0].Dimensions))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{inputs[0].Name}, []string{outputs[0].Name},
		[]ort.Value{input}, []ort.Value{output}, nil)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXDetector{
		session: session,
		input:   input,
		output:  output,
		pre:     pre,
		post:    NewPostProcessor(cfg.ConfThreshold, cfg.NMSThreshold),
	}, nil
}

// outputShape fills dynamic dimensions of a [batch, detections, 6] output.
func outputShape(dims ort.Shape) ort.Shape {
	shape := ort.NewShape(1, defaultMaxDetections, 6)
	if len(dims) != 3 {
		return shape
	}
	for i, d := range dims {
		if d > 0 {
			shape[i] = d
		}
	}
	return shape
}

// Detect implements Detector.
func (d *ONNXDetector) Detect(ctx context.Context, img image.Image) ([]paragraph.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, lb := d.pre.Preprocess(img)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, fmt.Errorf("detector is closed")
	}

	copy(d.input.GetData(), data)
	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("layout inference failed: %w", err)
	}

	b := img.Bounds()
	return d.post.Process(d.output.GetData(), lb, b.Dx(), b.Dy()), nil
}

// Close releases the session and its tensors.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	err := d.session.Destroy()
	d.input.Destroy()
	d.output.Destroy()
	releaseRuntime()
	return err
}
