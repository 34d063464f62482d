package framework

import (
	"fmt"
)

// Tensor is a dense row-major float32 tensor. The first dimension of a batch
// is the sample count.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Reshape wraps data in a tensor of the given dimensions. At most one
// dimension may be -1; it is inferred from the data length.
func Reshape(data []float32, dims ...int) (Tensor, error) {
	shape := append([]int(nil), dims...)
	infer := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1:
			if infer >= 0 {
				return Tensor{}, fmt.Errorf("%w: more than one inferred dimension in %v", ErrShape, dims)
			}
			infer = i
		case d <= 0:
			return Tensor{}, fmt.Errorf("%w: invalid dimension %d in %v", ErrShape, d, dims)
		default:
			known *= d
		}
	}
	if infer >= 0 {
		if len(data) == 0 || len(data)%known != 0 {
			return Tensor{}, fmt.Errorf("%w: cannot reshape %d values into %v", ErrShape, len(data), dims)
		}
		shape[infer] = len(data) / known
	} else if known != len(data) {
		return Tensor{}, fmt.Errorf("%w: cannot reshape %d values into %v", ErrShape, len(data), dims)
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// Size is the element count implied by the shape.
func (t Tensor) Size() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Batch is the leading dimension.
func (t Tensor) Batch() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Sample returns the shape of a single sample.
func (t Tensor) Sample() []int {
	if len(t.Shape) == 0 {
		return nil
	}
	return t.Shape[1:]
}

// CheckSample verifies the tensor is a consistent batch of samples shaped
// like want.
func (t Tensor) CheckSample(want []int) error {
	if t.Size() != len(t.Data) {
		return fmt.Errorf("%w: shape %v holds %d values, data has %d", ErrShape, t.Shape, t.Size(), len(t.Data))
	}
	got := t.Sample()
	if t.Batch() <= 0 || len(got) != len(want) {
		return fmt.Errorf("%w: got batch %v, want [N %v]", ErrShape, t.Shape, want)
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: got batch %v, want [N %v]", ErrShape, t.Shape, want)
		}
	}
	return nil
}
