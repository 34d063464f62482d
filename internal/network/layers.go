// Package network describes convolutional networks as plain data: an ordered
// list of layers with enumerated kinds, plus the training-op selection that
// accompanies them. A Descriptor fully determines the graph a framework builds.
package network

import (
	"errors"
	"fmt"
)

// ErrInvalid marks a descriptor or train op that fails validation.
var ErrInvalid = errors.New("invalid network")

// LayerKind enumerates the supported layer types.
type LayerKind int

const (
	KindInput LayerKind = iota + 1
	KindConv2D
	KindMaxPool2D
	KindDropout
	KindFullyConnected
)

func (k LayerKind) String() string {
	switch k {
	case KindInput:
		return "Input"
	case KindConv2D:
		return "Conv2D"
	case KindMaxPool2D:
		return "MaxPool2D"
	case KindDropout:
		return "Dropout"
	case KindFullyConnected:
		return "FullyConnected"
	}
	return fmt.Sprintf("LayerKind(%d)", int(k))
}

// Activation enumerates the element-wise functions applied after a layer.
type Activation int

const (
	Linear Activation = iota
	ReLU
	Softmax
)

func (a Activation) String() string {
	switch a {
	case Linear:
		return "linear"
	case ReLU:
		return "relu"
	case Softmax:
		return "softmax"
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// Padding enumerates spatial padding modes.
type Padding int

const (
	Same Padding = iota
	Valid
)

func (p Padding) String() string {
	switch p {
	case Same:
		return "same"
	case Valid:
		return "valid"
	}
	return fmt.Sprintf("Padding(%d)", int(p))
}

// Layer is one entry of a Descriptor. Which fields matter depends on Kind:
// Input uses Shape; Conv2D uses Units (filters), Kernel, Stride, Padding and
// Activation; MaxPool2D uses Kernel, Stride and Padding; Dropout uses
// KeepProb; FullyConnected uses Units and Activation.
type Layer struct {
	Kind       LayerKind
	Label      string
	Shape      []int
	Units      int
	Kernel     int
	Stride     int
	Padding    Padding
	Activation Activation
	KeepProb   float64
}

// Input declares the per-sample input shape (height, width, channels).
func Input(label string, shape ...int) Layer {
	return Layer{Kind: KindInput, Label: label, Shape: append([]int(nil), shape...)}
}

// Conv2D declares a stride-1, same-padded convolution.
func Conv2D(label string, filters, kernel int, act Activation) Layer {
	return Layer{Kind: KindConv2D, Label: label, Units: filters, Kernel: kernel, Stride: 1, Padding: Same, Activation: act}
}

// MaxPool2D declares a same-padded max pooling.
func MaxPool2D(label string, kernel, stride int) Layer {
	return Layer{Kind: KindMaxPool2D, Label: label, Kernel: kernel, Stride: stride, Padding: Same}
}

// Dropout declares dropout with the given keep probability.
func Dropout(label string, keepProb float64) Layer {
	return Layer{Kind: KindDropout, Label: label, KeepProb: keepProb}
}

// FullyConnected declares a dense layer.
func FullyConnected(label string, units int, act Activation) Layer {
	return Layer{Kind: KindFullyConnected, Label: label, Units: units, Activation: act}
}

// Weighted reports whether the layer owns trainable parameters.
func (l Layer) Weighted() bool {
	return l.Kind == KindConv2D || l.Kind == KindFullyConnected
}

func (l Layer) validate() error {
	switch l.Kind {
	case KindInput:
		if len(l.Shape) != 3 {
			return fmt.Errorf("%w: input shape must be height, width, channels; got %v", ErrInvalid, l.Shape)
		}
		for _, d := range l.Shape {
			if d <= 0 {
				return fmt.Errorf("%w: input shape %v has a non-positive dimension", ErrInvalid, l.Shape)
			}
		}
	case KindConv2D:
		if l.Units <= 0 || l.Kernel <= 0 || l.Stride <= 0 {
			return fmt.Errorf("%w: %s needs positive filters, kernel and stride", ErrInvalid, l.Kind)
		}
	case KindMaxPool2D:
		if l.Kernel <= 0 || l.Stride <= 0 {
			return fmt.Errorf("%w: %s needs positive kernel and stride", ErrInvalid, l.Kind)
		}
	case KindDropout:
		if l.KeepProb <= 0 || l.KeepProb > 1 {
			return fmt.Errorf("%w: keep probability %v outside (0, 1]", ErrInvalid, l.KeepProb)
		}
	case KindFullyConnected:
		if l.Units <= 0 {
			return fmt.Errorf("%w: %s needs positive units", ErrInvalid, l.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown layer kind %s", ErrInvalid, l.Kind)
	}
	if l.Padding != Same && l.Padding != Valid {
		return fmt.Errorf("%w: unknown padding %s", ErrInvalid, l.Padding)
	}
	if l.Activation < Linear || l.Activation > Softmax {
		return fmt.Errorf("%w: unknown activation %s", ErrInvalid, l.Activation)
	}
	return nil
}
