// Package native is a pure-Go inference backend. It compiles a
// network.Descriptor into a stack of float32 operators and runs the heavy
// products through gonum's blas32 GEMM: convolutions via im2col, dense
// layers as one batched matrix product.
package native

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/Brownie44l1/fer-emotion/internal/checkpoint"
	"github.com/Brownie44l1/fer-emotion/internal/framework"
	"github.com/Brownie44l1/fer-emotion/internal/network"
)

const (
	denseInitStddev = 0.02
	truncateAt      = 2.0
)

// Option configures the Framework.
type Option func(*Framework)

// WithSeed fixes the seed used for parameter initialisation.
func WithSeed(seed uint64) Option {
	return func(f *Framework) { f.seed = seed }
}

// Framework builds native models.
type Framework struct {
	seed uint64
}

// New returns a native Framework.
func New(opts ...Option) *Framework {
	f := &Framework{seed: 1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build compiles the descriptor. Parameters are not materialised until a
// checkpoint is loaded or the first Predict needs them.
func (f *Framework) Build(net network.Descriptor, op network.TrainOp) (framework.Model, error) {
	return f.build(net, op)
}

func (f *Framework) build(net network.Descriptor, op network.TrainOp) (*Model, error) {
	if err := net.Validate(); err != nil {
		return nil, err
	}
	if err := op.Validate(); err != nil {
		return nil, err
	}
	shapes, err := net.Shapes()
	if err != nil {
		return nil, err
	}

	m := &Model{
		net: net,
		op:  op,
		rng: rand.New(rand.NewPCG(f.seed, f.seed^0x9e3779b97f4a7c15)),
	}
	scopes := net.Scopes()
	for i, l := range net.Layers {
		if i == 0 {
			continue
		}
		ly := &layer{def: l, in: shapes[i-1], out: shapes[i]}
		switch l.Kind {
		case network.KindConv2D:
			ly.w = &param{name: scopes[i] + "/W", shape: []int{l.Kernel, l.Kernel, ly.in[2], l.Units}}
			ly.b = &param{name: scopes[i] + "/b", shape: []int{l.Units}}
		case network.KindFullyConnected:
			ly.w = &param{name: scopes[i] + "/W", shape: []int{ly.in.Size(), l.Units}}
			ly.b = &param{name: scopes[i] + "/b", shape: []int{l.Units}}
		}
		if ly.w != nil {
			m.params = append(m.params, ly.w, ly.b)
		}
		m.layers = append(m.layers, ly)
	}
	return m, nil
}

type param struct {
	name  string
	shape []int
	data  []float32
}

func (p *param) size() int {
	n := 1
	for _, d := range p.shape {
		n *= d
	}
	return n
}

type layer struct {
	def  network.Layer
	in   network.Shape
	out  network.Shape
	w, b *param
}

// Model is a compiled network. It is not safe for concurrent use.
type Model struct {
	net    network.Descriptor
	op     network.TrainOp
	layers []*layer
	params []*param
	rng    *rand.Rand
	ready  bool
	closed bool
	step   int64
}

// Load restores parameters from the checkpoint at path. Every parameter of
// the model must be present with a matching shape.
func (m *Model) Load(path string, opts framework.LoadOptions) error {
	if m.closed {
		return framework.ErrClosed
	}
	meta, tensors, err := checkpoint.Read(path, opts.WeightsOnly)
	if err != nil {
		return err
	}
	for _, p := range m.params {
		t, ok := tensors[p.name]
		if !ok {
			return fmt.Errorf("%w: missing tensor %s", checkpoint.ErrIncompatible, p.name)
		}
		if !sameShape(t.Shape, p.shape) {
			return fmt.Errorf("%w: tensor %s has shape %v, model expects %v", checkpoint.ErrIncompatible, p.name, t.Shape, p.shape)
		}
	}
	for _, p := range m.params {
		p.data = tensors[p.name].Data
	}
	if !opts.WeightsOnly {
		m.step = meta.Step
	}
	m.ready = true
	return nil
}

// Save writes the model's parameters and step to a checkpoint at path.
func (m *Model) Save(path string) error {
	if m.closed {
		return framework.ErrClosed
	}
	m.initialize()
	tensors := make([]checkpoint.Tensor, len(m.params))
	for i, p := range m.params {
		tensors[i] = checkpoint.Tensor{Name: p.name, Shape: p.shape, Data: p.data, Trainable: true}
	}
	graph := make([]string, len(m.net.Layers))
	shapes, _ := m.net.Shapes()
	for i, l := range m.net.Layers {
		graph[i] = fmt.Sprintf("%s %s %v", l.Kind, l.Activation, shapes[i])
	}
	meta := checkpoint.Meta{
		Graph:        graph,
		Optimizer:    m.op.Optimizer.String(),
		Loss:         m.op.Loss.String(),
		Metric:       m.op.Metric.String(),
		LearningRate: m.op.LearningRate,
		Momentum:     m.op.Momentum,
		Step:         m.step,
	}
	return checkpoint.Write(path, meta, tensors)
}

// Step is the training step restored by a full (not weights-only) load.
func (m *Model) Step() int64 { return m.step }

// Predict runs the batch through every layer.
func (m *Model) Predict(batch framework.Tensor) ([][]float32, error) {
	if m.closed {
		return nil, framework.ErrClosed
	}
	if err := batch.CheckSample(m.net.InputShape()); err != nil {
		return nil, err
	}
	m.initialize()

	n := batch.Batch()
	cur := batch.Data
	for _, l := range m.layers {
		switch l.def.Kind {
		case network.KindConv2D:
			cur = conv2D(l, cur, n)
		case network.KindMaxPool2D:
			cur = maxPool2D(l, cur, n)
		case network.KindDropout:
			// identity at inference
		case network.KindFullyConnected:
			cur = dense(l, cur, n)
		}
		activate(l.def.Activation, cur, l.out.Size())
	}

	width := m.layers[len(m.layers)-1].out.Size()
	out := make([][]float32, n)
	for i := range out {
		out[i] = append([]float32(nil), cur[i*width:(i+1)*width]...)
	}
	return out, nil
}

// Close releases the parameters.
func (m *Model) Close() error {
	m.closed = true
	for _, p := range m.params {
		p.data = nil
	}
	return nil
}

// initialize materialises untrained parameters: uniform scaling for
// convolutions, truncated normal for dense layers, zero biases.
func (m *Model) initialize() {
	if m.ready {
		return
	}
	for _, l := range m.layers {
		if l.w == nil {
			continue
		}
		l.w.data = make([]float32, l.w.size())
		l.b.data = make([]float32, l.b.size())
		switch l.def.Kind {
		case network.KindConv2D:
			fanIn := l.w.shape[0] * l.w.shape[1] * l.w.shape[2]
			limit := math.Sqrt(3 / float64(fanIn))
			for i := range l.w.data {
				l.w.data[i] = float32((m.rng.Float64()*2 - 1) * limit)
			}
		case network.KindFullyConnected:
			for i := range l.w.data {
				v := m.rng.NormFloat64()
				for math.Abs(v) > truncateAt {
					v = m.rng.NormFloat64()
				}
				l.w.data[i] = float32(v * denseInitStddev)
			}
		}
	}
	m.ready = true
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
