package network

import (
	"fmt"
)

// Shape is a per-sample tensor shape, without the batch dimension.
type Shape []int

// Size is the number of elements in the shape.
func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Descriptor is an ordered layer stack. The first layer is always an Input.
type Descriptor struct {
	Layers []Layer
}

// EmotionNet returns the facial-emotion stack for 48x48 grayscale faces:
// three convolutions with two max-poolings, dropout, a 3072-wide hidden
// layer, and a softmax output of width classes.
func EmotionNet(classes int) Descriptor {
	return Descriptor{Layers: []Layer{
		Input("Input data", 48, 48, 1),
		Conv2D("Conv1", 64, 5, ReLU),
		MaxPool2D("Maxpool1", 3, 2),
		Conv2D("Conv2", 64, 5, ReLU),
		MaxPool2D("Maxpool2", 3, 2),
		Conv2D("Conv3", 128, 4, ReLU),
		Dropout("Dropout", 0.3),
		FullyConnected("Fully connected", 3072, ReLU),
		FullyConnected("Output", classes, Softmax),
	}}
}

// Validate checks every layer and the overall structure.
func (d Descriptor) Validate() error {
	if len(d.Layers) < 2 {
		return fmt.Errorf("%w: need an input and at least one more layer", ErrInvalid)
	}
	if d.Layers[0].Kind != KindInput {
		return fmt.Errorf("%w: first layer is %s, want Input", ErrInvalid, d.Layers[0].Kind)
	}
	for i, l := range d.Layers {
		if err := l.validate(); err != nil {
			return fmt.Errorf("layer %d (%s): %w", i, l.Label, err)
		}
		if i > 0 && l.Kind == KindInput {
			return fmt.Errorf("%w: layer %d is a second Input", ErrInvalid, i)
		}
		if l.Activation == Softmax && i != len(d.Layers)-1 {
			return fmt.Errorf("%w: softmax only allowed on the output layer", ErrInvalid)
		}
	}
	if _, err := d.Shapes(); err != nil {
		return err
	}
	return nil
}

// InputShape is the declared per-sample input shape.
func (d Descriptor) InputShape() Shape {
	if len(d.Layers) == 0 {
		return nil
	}
	return Shape(append([]int(nil), d.Layers[0].Shape...))
}

// OutputWidth is the number of units of the final layer.
func (d Descriptor) OutputWidth() int {
	if len(d.Layers) == 0 {
		return 0
	}
	shapes, err := d.Shapes()
	if err != nil {
		return 0
	}
	return shapes[len(shapes)-1].Size()
}

// Shapes infers the output shape of every layer. Convolutions and poolings
// follow TensorFlow semantics: SAME yields ceil(in/stride), VALID yields
// floor((in-kernel)/stride)+1. A fully-connected layer flattens its input.
func (d Descriptor) Shapes() ([]Shape, error) {
	shapes := make([]Shape, len(d.Layers))
	var cur Shape
	for i, l := range d.Layers {
		switch l.Kind {
		case KindInput:
			cur = Shape(append([]int(nil), l.Shape...))
		case KindConv2D, KindMaxPool2D:
			if len(cur) != 3 {
				return nil, fmt.Errorf("%w: %s at layer %d needs a spatial input, got %v", ErrInvalid, l.Kind, i, cur)
			}
			h, err := SpatialOut(cur[0], l.Kernel, l.Stride, l.Padding)
			if err != nil {
				return nil, fmt.Errorf("layer %d (%s): %w", i, l.Label, err)
			}
			w, err := SpatialOut(cur[1], l.Kernel, l.Stride, l.Padding)
			if err != nil {
				return nil, fmt.Errorf("layer %d (%s): %w", i, l.Label, err)
			}
			c := cur[2]
			if l.Kind == KindConv2D {
				c = l.Units
			}
			cur = Shape{h, w, c}
		case KindDropout:
			cur = Shape(append([]int(nil), cur...))
		case KindFullyConnected:
			cur = Shape{l.Units}
		default:
			return nil, fmt.Errorf("%w: unknown layer kind %s", ErrInvalid, l.Kind)
		}
		shapes[i] = cur
	}
	return shapes, nil
}

// SpatialOut computes one spatial output dimension.
func SpatialOut(in, kernel, stride int, pad Padding) (int, error) {
	switch pad {
	case Same:
		return (in + stride - 1) / stride, nil
	case Valid:
		if in < kernel {
			return 0, fmt.Errorf("%w: kernel %d larger than input %d", ErrInvalid, kernel, in)
		}
		return (in-kernel)/stride + 1, nil
	}
	return 0, fmt.Errorf("%w: unknown padding %s", ErrInvalid, pad)
}

// PadBefore is the leading padding TensorFlow applies for SAME padding.
func PadBefore(in, kernel, stride int, pad Padding) int {
	if pad != Same {
		return 0
	}
	out := (in + stride - 1) / stride
	total := (out-1)*stride + kernel - in
	if total < 0 {
		return 0
	}
	return total / 2
}

// Scopes names the weighted layers the way checkpoints do: the first layer
// of a kind takes the bare kind name, later ones get _1, _2, ... suffixes.
// Non-weighted layers map to the empty string.
func (d Descriptor) Scopes() []string {
	seen := map[LayerKind]int{}
	scopes := make([]string, len(d.Layers))
	for i, l := range d.Layers {
		if !l.Weighted() {
			continue
		}
		n := seen[l.Kind]
		seen[l.Kind] = n + 1
		if n == 0 {
			scopes[i] = l.Kind.String()
		} else {
			scopes[i] = fmt.Sprintf("%s_%d", l.Kind, n)
		}
	}
	return scopes
}
