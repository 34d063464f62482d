package network

import (
	"fmt"
)

// Optimizer enumerates the optimizers a train op may select.
type Optimizer int

const (
	SGD Optimizer = iota + 1
	Momentum
	Adam
)

func (o Optimizer) String() string {
	switch o {
	case SGD:
		return "sgd"
	case Momentum:
		return "momentum"
	case Adam:
		return "adam"
	}
	return fmt.Sprintf("Optimizer(%d)", int(o))
}

// Loss enumerates loss functions.
type Loss int

const (
	CategoricalCrossEntropy Loss = iota + 1
	MeanSquare
)

func (l Loss) String() string {
	switch l {
	case CategoricalCrossEntropy:
		return "categorical_crossentropy"
	case MeanSquare:
		return "mean_square"
	}
	return fmt.Sprintf("Loss(%d)", int(l))
}

// Metric enumerates evaluation metrics.
type Metric int

const (
	Accuracy Metric = iota + 1
)

func (m Metric) String() string {
	if m == Accuracy {
		return "accuracy"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// TrainOp selects how a model would be optimised. Inference-only frameworks
// keep it for checkpoint compatibility.
type TrainOp struct {
	Optimizer    Optimizer
	LearningRate float64
	Momentum     float64
	Loss         Loss
	Metric       Metric
}

// MomentumTrainOp is the emotion network's train op: momentum 0.9 at a
// learning rate of 0.001, categorical cross-entropy, accuracy.
func MomentumTrainOp() TrainOp {
	return TrainOp{
		Optimizer:    Momentum,
		LearningRate: 0.001,
		Momentum:     0.9,
		Loss:         CategoricalCrossEntropy,
		Metric:       Accuracy,
	}
}

// Validate rejects unknown selections and nonsensical rates.
func (t TrainOp) Validate() error {
	if t.Optimizer < SGD || t.Optimizer > Adam {
		return fmt.Errorf("%w: unknown optimizer %s", ErrInvalid, t.Optimizer)
	}
	if t.Loss < CategoricalCrossEntropy || t.Loss > MeanSquare {
		return fmt.Errorf("%w: unknown loss %s", ErrInvalid, t.Loss)
	}
	if t.Metric != Accuracy {
		return fmt.Errorf("%w: unknown metric %s", ErrInvalid, t.Metric)
	}
	if t.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive", ErrInvalid)
	}
	if t.Optimizer == Momentum && (t.Momentum < 0 || t.Momentum >= 1) {
		return fmt.Errorf("%w: momentum %v outside [0, 1)", ErrInvalid, t.Momentum)
	}
	return nil
}
