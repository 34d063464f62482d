package app_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/Brownie44l1/fer-emotion/internal/app"
	"github.com/Brownie44l1/fer-emotion/internal/config"
	"github.com/Brownie44l1/fer-emotion/internal/framework/native"
	"github.com/Brownie44l1/fer-emotion/internal/framework/onnx"
	"github.com/Brownie44l1/fer-emotion/internal/model"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewFramework(t *testing.T) {
	Convey("Given a configuration", t, func() {
		cfg := config.New()

		Convey("The native backend is the default", func() {
			fw, err := app.NewFramework(cfg)
			So(err, ShouldBeNil)
			_, ok := fw.(*native.Framework)
			So(ok, ShouldBeTrue)
		})

		Convey("The onnx backend can be selected", func() {
			cfg.Backend = config.BackendONNX
			fw, err := app.NewFramework(cfg)
			So(err, ShouldBeNil)
			_, ok := fw.(*onnx.Framework)
			So(ok, ShouldBeTrue)
		})

		Convey("An unknown backend is rejected", func() {
			cfg.Backend = "tensorflow"
			_, err := app.NewFramework(cfg)
			So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestNewClassifier(t *testing.T) {
	if testing.Short() {
		t.Skip("allocates the full emotion network")
	}
	Convey("Given a model directory without a checkpoint", t, func() {
		cfg := config.New()
		cfg.ModelDir = t.TempDir()
		mm := metrics.NewManager()

		c, err := app.NewClassifier(context.Background(), cfg, logger.Nop(), mm, model.WithDiagnostics(io.Discard))
		So(err, ShouldBeNil)
		defer c.Close()

		Convey("Then the classifier still predicts", func() {
			img := make(model.Image, model.ImageSize)
			for i := range img {
				img[i] = make([]float32, model.ImageSize)
			}
			resp, err := c.Classify(context.Background(), img)
			So(err, ShouldBeNil)
			So(resp.Predictions, ShouldHaveLength, 7)
		})
	})
}
