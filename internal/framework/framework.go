// Package framework is the contract between the emotion classifier and the
// inference engine that executes its network. The classifier only ever holds
// a Model handle; graph construction, weights and execution stay behind it.
package framework

import (
	"errors"

	"github.com/Brownie44l1/fer-emotion/internal/network"
)

var (
	// ErrShape is returned when a tensor does not fit the requested or
	// expected shape.
	ErrShape = errors.New("tensor shape mismatch")
	// ErrClosed is returned by a Model used after Close.
	ErrClosed = errors.New("model closed")
)

// Framework builds trainable models from a network description.
type Framework interface {
	Build(net network.Descriptor, op network.TrainOp) (Model, error)
}

// LoadOptions controls how a checkpoint is restored.
type LoadOptions struct {
	// WeightsOnly restores trainable parameters and skips optimizer and
	// step state.
	WeightsOnly bool
}

// Model is a framework-owned handle to a built network. It is not safe for
// concurrent use.
type Model interface {
	// Load restores parameters from the checkpoint at path.
	Load(path string, opts LoadOptions) error
	// Predict runs inference on a batch and returns one output vector per
	// sample.
	Predict(batch Tensor) ([][]float32, error)
	// Close releases resources held by the model.
	Close() error
}
