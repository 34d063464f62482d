// Package onnx runs an exported emotion network through onnxruntime. The
// graph is fixed by the export, so Build only derives the tensor shapes from
// the descriptor and Load opens the session.
package onnx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/fer-emotion/internal/checkpoint"
	"github.com/Brownie44l1/fer-emotion/internal/framework"
	"github.com/Brownie44l1/fer-emotion/internal/network"
)

// ModelSuffix replaces the checkpoint's .meta suffix to locate the export.
const ModelSuffix = ".onnx"

// ErrNotLoaded is returned by Predict before a session has been opened.
var ErrNotLoaded = errors.New("onnx model not loaded")

// Framework creates ONNX-backed models.
type Framework struct {
	libraryPath string
	inputName   string
	outputName  string
}

// Option configures the Framework.
type Option func(*Framework)

// WithLibraryPath points at the onnxruntime shared library.
func WithLibraryPath(path string) Option {
	return func(f *Framework) { f.libraryPath = path }
}

// WithTensorNames overrides the graph's input and output names.
func WithTensorNames(input, output string) Option {
	return func(f *Framework) {
		f.inputName = input
		f.outputName = output
	}
}

// New returns an ONNX Framework.
func New(opts ...Option) *Framework {
	f := &Framework{inputName: "input", outputName: "output"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build validates the network and records the session shapes.
func (f *Framework) Build(net network.Descriptor, op network.TrainOp) (framework.Model, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	in := net.InputShape()
	return &Model{
		fw:          f,
		sampleShape: in,
		inputShape:  ort.NewShape(1, int64(in[0]), int64(in[1]), int64(in[2])),
		outputShape: ort.NewShape(1, int64(net.OutputWidth())),
	}, nil
}

// ExportPath maps a checkpoint .meta path to its ONNX export.
func ExportPath(metaPath string) string {
	return strings.TrimSuffix(metaPath, checkpoint.MetaSuffix) + ModelSuffix
}

// Model wraps an onnxruntime session with pre-allocated single-sample
// input and output tensors.
type Model struct {
	fw          *Framework
	sampleShape network.Shape
	inputShape  ort.Shape
	outputShape ort.Shape

	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	ownsEnv      bool
	closed       bool
}

// Load opens the ONNX export that sits next to the checkpoint. The export
// carries weights only, so opts has no effect.
func (m *Model) Load(path string, _ framework.LoadOptions) error {
	if m.closed {
		return framework.ErrClosed
	}
	modelPath := ExportPath(path)
	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", checkpoint.ErrNotFound, modelPath)
		}
		return fmt.Errorf("stat onnx model: %w", err)
	}

	if !ort.IsInitialized() {
		if m.fw.libraryPath != "" {
			ort.SetSharedLibraryPath(m.fw.libraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
		m.ownsEnv = true
	}

	m.release()

	inputTensor, err := ort.NewEmptyTensor[float32](m.inputShape)
	if err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](m.outputShape)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{m.fw.inputName}, []string{m.fw.outputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}

	m.session = session
	m.inputTensor = inputTensor
	m.outputTensor = outputTensor
	return nil
}

// Predict runs the session once per sample.
func (m *Model) Predict(batch framework.Tensor) ([][]float32, error) {
	if m.closed {
		return nil, framework.ErrClosed
	}
	if m.session == nil {
		return nil, ErrNotLoaded
	}
	if err := batch.CheckSample(m.sampleShape); err != nil {
		return nil, err
	}

	size := m.sampleShape.Size()
	out := make([][]float32, batch.Batch())
	for i := range out {
		copy(m.inputTensor.GetData(), batch.Data[i*size:(i+1)*size])
		if err := m.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
		out[i] = append([]float32(nil), m.outputTensor.GetData()...)
	}
	return out, nil
}

// Close destroys the session and, if this model created it, the
// onnxruntime environment.
func (m *Model) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.release()
	if m.ownsEnv {
		return ort.DestroyEnvironment()
	}
	return nil
}

func (m *Model) release() {
	if m.inputTensor != nil {
		m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
}
