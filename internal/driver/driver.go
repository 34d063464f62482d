// Package driver holds the command-line drivers that feed frames to the
// emotion classifier: singleface classifies the most prominent face of each
// frame, multiface classifies every face.
package driver

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/Brownie44l1/fer-emotion/internal/model"
	"github.com/Brownie44l1/fer-emotion/internal/preprocess"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
)

// Mode selects a driver.
type Mode string

const (
	SingleFace Mode = "singleface"
	MultiFace  Mode = "multiface"
)

// ParseMode maps a command-line argument to a Mode.
func ParseMode(arg string) (Mode, bool) {
	switch Mode(arg) {
	case SingleFace, MultiFace:
		return Mode(arg), true
	}
	return "", false
}

// Classifier is what the drivers need from the emotion classifier.
type Classifier interface {
	Classify(ctx context.Context, img model.Image) (*model.PredictionResponse, error)
}

// Report summarises a run.
type Report struct {
	Frames  int
	Faces   int
	Skipped int
}

// Option configures a Driver.
type Option func(*Driver)

// WithOutput sets where per-face results are written.
func WithOutput(w io.Writer) Option {
	return func(d *Driver) { d.out = w }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// WithMetrics counts processed faces.
func WithMetrics(m *metrics.Manager) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver runs one mode over a set of frames.
type Driver struct {
	mode       Mode
	classifier Classifier
	out        io.Writer
	log        logger.Logger
	metrics    *metrics.Manager
}

// New returns a driver for mode.
func New(mode Mode, c Classifier, opts ...Option) *Driver {
	d := &Driver{mode: mode, classifier: c, out: os.Stdout, log: logger.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run classifies the faces of every frame under input. Frames that cannot be
// decoded are logged and skipped; a classifier error stops the run.
func (d *Driver) Run(ctx context.Context, input string) (Report, error) {
	var rep Report
	frames, err := Frames(input)
	if err != nil {
		return rep, err
	}
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		n, err := d.frame(ctx, frame)
		if err != nil {
			var skip skipError
			if errors.As(err, &skip) {
				d.log.Warn(ctx, "skipping frame", logger.String("frame", frame), logger.Error(err))
				rep.Skipped++
				continue
			}
			return rep, err
		}
		rep.Frames++
		rep.Faces += n
	}
	d.log.Info(ctx, "driver finished",
		logger.String("mode", string(d.mode)),
		logger.Int("frames", rep.Frames),
		logger.Int("faces", rep.Faces),
		logger.Int("skipped", rep.Skipped))
	return rep, nil
}

type skipError struct{ err error }

func (e skipError) Error() string { return e.err.Error() }
func (e skipError) Unwrap() error { return e.err }

func (d *Driver) frame(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, skipError{err}
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return 0, skipError{fmt.Errorf("decode: %w", err)}
	}

	boxes, err := Faces(path, img.Bounds())
	if err != nil {
		return 0, skipError{err}
	}
	if d.mode == SingleFace && len(boxes) > 1 {
		boxes = []image.Rectangle{Largest(boxes)}
	}

	faces := 0
	for i, box := range boxes {
		resp, err := d.classifier.Classify(ctx, preprocess.Face(img, box))
		if err != nil {
			return faces, fmt.Errorf("classify %s face %d: %w", filepath.Base(path), i, err)
		}
		if resp == nil {
			continue
		}
		fmt.Fprintf(d.out, "%s face %d: %s (%.2f)\n", filepath.Base(path), i, resp.Class, resp.Confidence)
		if d.metrics != nil {
			d.metrics.RecordFace(string(d.mode))
		}
		faces++
	}
	return faces, nil
}
