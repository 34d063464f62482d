package onnx_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/fer-emotion/internal/checkpoint"
	"github.com/Brownie44l1/fer-emotion/internal/framework"
	"github.com/Brownie44l1/fer-emotion/internal/framework/onnx"
	"github.com/Brownie44l1/fer-emotion/internal/network"
	. "github.com/smartystreets/goconvey/convey"
)

func TestONNXModelWithoutSession(t *testing.T) {
	Convey("Given an ONNX model built from the emotion network", t, func() {
		fw := onnx.New(onnx.WithLibraryPath("/nonexistent/libonnxruntime.so"))
		m, err := fw.Build(network.EmotionNet(7), network.MomentumTrainOp())
		So(err, ShouldBeNil)

		Convey("When predicting before a load", func() {
			batch, _ := framework.Reshape(make([]float32, 48*48), -1, 48, 48, 1)
			_, err := m.Predict(batch)
			So(errors.Is(err, onnx.ErrNotLoaded), ShouldBeTrue)
		})

		Convey("When the export next to the checkpoint is missing", func() {
			err := m.Load(filepath.Join(t.TempDir(), "model_1_atul.tflearn.meta"), framework.LoadOptions{WeightsOnly: true})
			So(errors.Is(err, checkpoint.ErrNotFound), ShouldBeTrue)
		})

		Convey("When closed", func() {
			So(m.Close(), ShouldBeNil)
			So(m.Close(), ShouldBeNil)
			batch, _ := framework.Reshape(make([]float32, 48*48), -1, 48, 48, 1)
			_, err := m.Predict(batch)
			So(errors.Is(err, framework.ErrClosed), ShouldBeTrue)
		})
	})

	Convey("Given an invalid descriptor", t, func() {
		_, err := onnx.New().Build(network.Descriptor{}, network.MomentumTrainOp())
		So(errors.Is(err, network.ErrInvalid), ShouldBeTrue)
	})

	Convey("Given a checkpoint path", t, func() {
		So(onnx.ExportPath("/m/model_1_atul.tflearn.meta"), ShouldEqual, "/m/model_1_atul.tflearn.onnx")
	})
}
