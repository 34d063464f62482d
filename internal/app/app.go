// Package app wires configuration into a ready classifier for the binaries.
package app

import (
	"context"
	"fmt"

	"github.com/Brownie44l1/fer-emotion/internal/config"
	"github.com/Brownie44l1/fer-emotion/internal/framework"
	"github.com/Brownie44l1/fer-emotion/internal/framework/native"
	"github.com/Brownie44l1/fer-emotion/internal/framework/onnx"
	"github.com/Brownie44l1/fer-emotion/internal/model"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
)

// NewFramework returns the inference backend named by cfg.Backend.
func NewFramework(cfg *config.Config) (framework.Framework, error) {
	switch cfg.Backend {
	case config.BackendNative:
		return native.New(native.WithSeed(cfg.Seed)), nil
	case config.BackendONNX:
		return onnx.New(onnx.WithLibraryPath(cfg.ONNXLibrary)), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// NewClassifier builds the emotion classifier and loads its checkpoint from
// cfg.ModelDir. The caller owns the returned classifier and must Close it.
func NewClassifier(ctx context.Context, cfg *config.Config, log logger.Logger, mm *metrics.Manager, opts ...model.Option) (*model.Classifier, error) {
	fw, err := NewFramework(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]model.Option{model.WithLogger(log), model.WithMetrics(mm)}, opts...)
	c := model.New(fw, opts...)
	if err := c.Build(ctx, cfg.ModelDir); err != nil {
		_ = c.Close()
		return nil, err
	}
	log.Info(ctx, "classifier ready",
		logger.String("backend", cfg.Backend),
		logger.String("checkpoint", model.CheckpointPath(cfg.ModelDir)))
	return c, nil
}
