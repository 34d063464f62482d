package network_test

import (
	"errors"
	"testing"

	"github.com/Brownie44l1/fer-emotion/internal/network"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEmotionNet(t *testing.T) {
	Convey("Given the emotion network for 7 classes", t, func() {
		d := network.EmotionNet(7)

		Convey("Then it validates", func() {
			So(d.Validate(), ShouldBeNil)
		})

		Convey("Then the layers appear in the fixed order", func() {
			kinds := make([]network.LayerKind, len(d.Layers))
			for i, l := range d.Layers {
				kinds[i] = l.Kind
			}
			So(kinds, ShouldResemble, []network.LayerKind{
				network.KindInput,
				network.KindConv2D, network.KindMaxPool2D,
				network.KindConv2D, network.KindMaxPool2D,
				network.KindConv2D,
				network.KindDropout,
				network.KindFullyConnected, network.KindFullyConnected,
			})
			So(d.Layers[6].KeepProb, ShouldEqual, 0.3)
			So(d.Layers[8].Activation, ShouldEqual, network.Softmax)
		})

		Convey("Then shape inference follows same padding", func() {
			shapes, err := d.Shapes()
			So(err, ShouldBeNil)
			So(shapes, ShouldResemble, []network.Shape{
				{48, 48, 1},
				{48, 48, 64},
				{24, 24, 64},
				{24, 24, 64},
				{12, 12, 64},
				{12, 12, 128},
				{12, 12, 128},
				{3072},
				{7},
			})
		})

		Convey("Then the output width equals the class count", func() {
			So(d.OutputWidth(), ShouldEqual, 7)
			So(network.EmotionNet(3).OutputWidth(), ShouldEqual, 3)
		})

		Convey("Then weighted layers get checkpoint scopes", func() {
			So(d.Scopes(), ShouldResemble, []string{
				"", "Conv2D", "", "Conv2D_1", "", "Conv2D_2", "", "FullyConnected", "FullyConnected_1",
			})
		})
	})
}

func TestDescriptorValidate(t *testing.T) {
	Convey("Given malformed descriptors", t, func() {
		Convey("When the first layer is not an input", func() {
			d := network.Descriptor{Layers: []network.Layer{
				network.FullyConnected("a", 3, network.ReLU),
				network.FullyConnected("b", 2, network.Softmax),
			}}
			So(errors.Is(d.Validate(), network.ErrInvalid), ShouldBeTrue)
		})

		Convey("When softmax is not on the last layer", func() {
			d := network.Descriptor{Layers: []network.Layer{
				network.Input("in", 4, 4, 1),
				network.FullyConnected("a", 3, network.Softmax),
				network.FullyConnected("b", 2, network.Linear),
			}}
			So(errors.Is(d.Validate(), network.ErrInvalid), ShouldBeTrue)
		})

		Convey("When a convolution follows a dense layer", func() {
			d := network.Descriptor{Layers: []network.Layer{
				network.Input("in", 4, 4, 1),
				network.FullyConnected("a", 3, network.ReLU),
				network.Conv2D("c", 2, 3, network.ReLU),
			}}
			So(errors.Is(d.Validate(), network.ErrInvalid), ShouldBeTrue)
		})

		Convey("When dropout keeps nothing", func() {
			d := network.Descriptor{Layers: []network.Layer{
				network.Input("in", 4, 4, 1),
				network.Dropout("d", 0),
			}}
			So(errors.Is(d.Validate(), network.ErrInvalid), ShouldBeTrue)
		})

		Convey("When a layer kind is unknown", func() {
			d := network.Descriptor{Layers: []network.Layer{
				network.Input("in", 4, 4, 1),
				{Kind: network.LayerKind(99), Label: "mystery"},
			}}
			err := d.Validate()
			So(errors.Is(err, network.ErrInvalid), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "LayerKind(99)")
		})
	})
}

func TestSpatialArithmetic(t *testing.T) {
	Convey("Given TensorFlow padding arithmetic", t, func() {
		out, err := network.SpatialOut(48, 3, 2, network.Same)
		So(err, ShouldBeNil)
		So(out, ShouldEqual, 24)

		out, err = network.SpatialOut(48, 5, 1, network.Valid)
		So(err, ShouldBeNil)
		So(out, ShouldEqual, 44)

		_, err = network.SpatialOut(2, 5, 1, network.Valid)
		So(err, ShouldNotBeNil)

		So(network.PadBefore(48, 5, 1, network.Same), ShouldEqual, 2)
		So(network.PadBefore(12, 4, 1, network.Same), ShouldEqual, 1)
		So(network.PadBefore(48, 3, 2, network.Same), ShouldEqual, 0)
		So(network.PadBefore(48, 3, 2, network.Valid), ShouldEqual, 0)
	})
}

func TestTrainOp(t *testing.T) {
	Convey("Given the momentum train op", t, func() {
		op := network.MomentumTrainOp()
		So(op.Validate(), ShouldBeNil)
		So(op.Optimizer.String(), ShouldEqual, "momentum")
		So(op.Loss.String(), ShouldEqual, "categorical_crossentropy")
		So(op.Metric.String(), ShouldEqual, "accuracy")

		Convey("When the optimizer is unset", func() {
			op.Optimizer = 0
			So(errors.Is(op.Validate(), network.ErrInvalid), ShouldBeTrue)
		})

		Convey("When momentum is out of range", func() {
			op.Momentum = 1.5
			So(errors.Is(op.Validate(), network.ErrInvalid), ShouldBeTrue)
		})
	})
}
