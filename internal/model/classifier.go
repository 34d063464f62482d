// Package model holds the emotion classifier: it assembles the network,
// asks a framework to build and load it, and turns pixel arrays into
// probability vectors over the emotion labels.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Brownie44l1/fer-emotion/internal/framework"
	"github.com/Brownie44l1/fer-emotion/internal/network"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
)

const (
	// ImageSize is the side of the square grayscale face the network reads.
	ImageSize = 48
	// CheckpointFile is the checkpoint name looked up in the model directory.
	CheckpointFile = "model_1_atul.tflearn.meta"

	modelNotFound = "---> Couldn't find model"
)

// ErrNotBuilt is returned when the classifier is used before Build.
var ErrNotBuilt = errors.New("classifier not built")

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDiagnostics sets where the layer shape table and the missing-model
// notice are printed.
func WithDiagnostics(w io.Writer) Option {
	return func(c *Classifier) {
		if w != nil {
			c.diag = w
		}
	}
}

// WithMetrics records predictions and checkpoint outcomes.
func WithMetrics(m *metrics.Manager) Option {
	return func(c *Classifier) { c.metrics = m }
}

// Classifier is the emotion classifier. It owns one framework model handle
// and is not safe for concurrent use.
type Classifier struct {
	fw      framework.Framework
	labels  LabelSet
	net     network.Descriptor
	handle  framework.Model
	log     logger.Logger
	diag    io.Writer
	metrics *metrics.Manager
}

// New returns an unbuilt classifier backed by fw.
func New(fw framework.Framework, opts ...Option) *Classifier {
	c := &Classifier{
		fw:     fw,
		labels: EmotionLabels(),
		log:    logger.Nop(),
		diag:   os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Build assembles the network, requests a model from the framework and
// loads the checkpoint from modelDir (empty for the working directory).
// A missing checkpoint is not an error.
func (c *Classifier) Build(ctx context.Context, modelDir string) error {
	net := network.EmotionNet(len(c.labels))
	shapes, err := net.Shapes()
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}
	if w := net.OutputWidth(); w != len(c.labels) {
		return fmt.Errorf("%w: output width %d, %d labels", network.ErrInvalid, w, len(c.labels))
	}
	for i, l := range net.Layers {
		fmt.Fprintf(c.diag, "%-15s %v\n", l.Label, []int(shapes[i]))
	}
	fmt.Fprintln(c.diag)

	handle, err := c.fw.Build(net, network.MomentumTrainOp())
	if err != nil {
		return fmt.Errorf("build network: %w", err)
	}
	if c.handle != nil {
		if err := c.handle.Close(); err != nil {
			c.log.Warn(ctx, "closing previous model failed", logger.Error(err))
		}
	}
	c.handle = handle
	c.net = net
	c.log.Debug(ctx, "network built", logger.Int("layers", len(net.Layers)))

	return c.Load(ctx, modelDir)
}

// CheckpointPath resolves the checkpoint file inside modelDir.
func CheckpointPath(modelDir string) string {
	if modelDir == "" {
		return CheckpointFile
	}
	return filepath.Join(modelDir, CheckpointFile)
}

// Load restores weights from the checkpoint in modelDir. When the file does
// not exist the model keeps its untrained weights and Load returns nil.
func (c *Classifier) Load(ctx context.Context, modelDir string) error {
	if c.handle == nil {
		return ErrNotBuilt
	}
	path := CheckpointPath(modelDir)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		fmt.Fprintln(c.diag, modelNotFound)
		c.log.Warn(ctx, "checkpoint not found; using untrained weights", logger.String("path", path))
		if c.metrics != nil {
			c.metrics.RecordCheckpointMissing()
		}
		return nil
	}

	if err := c.handle.Load(path, framework.LoadOptions{WeightsOnly: true}); err != nil {
		return fmt.Errorf("load checkpoint %s: %w", path, err)
	}
	c.log.Info(ctx, "checkpoint loaded", logger.String("path", path))
	if c.metrics != nil {
		c.metrics.RecordCheckpointLoaded()
	}
	return nil
}

// Predict reshapes img into a batch of 48x48x1 samples and returns the
// framework's output, one probability vector per sample with positions
// matching Labels. A nil img yields a nil result and no error.
func (c *Classifier) Predict(ctx context.Context, img Image) ([][]float32, error) {
	if img == nil {
		return nil, nil
	}
	if c.handle == nil {
		return nil, ErrNotBuilt
	}

	data := make([]float32, 0, len(img)*ImageSize)
	for _, row := range img {
		data = append(data, row...)
	}
	in := c.net.InputShape()
	batch, err := framework.Reshape(data, -1, in[0], in[1], in[2])
	if err != nil {
		c.recordError()
		return nil, fmt.Errorf("reshape image: %w", err)
	}

	out, err := c.handle.Predict(batch)
	if err != nil {
		c.recordError()
		c.log.Debug(ctx, "inference failed", logger.Error(err))
		return nil, fmt.Errorf("predict: %w", err)
	}
	return out, nil
}

// Classify predicts img and reports the most likely emotion of the first
// sample with every label's score. A nil img yields nil.
func (c *Classifier) Classify(ctx context.Context, img Image) (*PredictionResponse, error) {
	start := time.Now()
	out, err := c.Predict(ctx, img)
	if err != nil || out == nil {
		return nil, err
	}
	resp, err := c.response(out[0])
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.RecordPrediction(resp.Class, time.Since(start))
	}
	return resp, nil
}

func (c *Classifier) response(scores []float32) (*PredictionResponse, error) {
	if len(scores) != len(c.labels) {
		return nil, fmt.Errorf("%w: %d scores for %d labels", framework.ErrShape, len(scores), len(c.labels))
	}
	maxIdx := 0
	predictions := make(map[string]float32, len(scores))
	for i, val := range scores {
		predictions[c.labels[i]] = val
		if val > scores[maxIdx] {
			maxIdx = i
		}
	}
	return &PredictionResponse{
		Class:       c.labels[maxIdx],
		Confidence:  scores[maxIdx],
		Predictions: predictions,
	}, nil
}

func (c *Classifier) recordError() {
	if c.metrics != nil {
		c.metrics.RecordPredictionError()
	}
}

// Labels returns a copy of the label set.
func (c *Classifier) Labels() LabelSet { return c.labels }

// Metadata describes the classifier's input and output tensors.
func (c *Classifier) Metadata() Metadata {
	classes := make([]string, len(c.labels))
	copy(classes, c.labels[:])
	return Metadata{
		InputShape:  []int64{1, ImageSize, ImageSize, 1},
		OutputShape: []int64{1, int64(len(c.labels))},
		Classes:     classes,
		ImageSize:   ImageSize,
	}
}

// Close releases the framework model.
func (c *Classifier) Close() error {
	if c.handle == nil {
		return nil
	}
	err := c.handle.Close()
	c.handle = nil
	return err
}
