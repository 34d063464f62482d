package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"

	"github.com/Brownie44l1/fer-emotion/internal/model"
	"github.com/Brownie44l1/fer-emotion/internal/preprocess"
	"github.com/Brownie44l1/fer-emotion/pkg/logger"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
)

// Classifier is the part of the emotion classifier the HTTP API uses.
type Classifier interface {
	Classify(ctx context.Context, img model.Image) (*model.PredictionResponse, error)
	Metadata() model.Metadata
}

type Handler struct {
	// mu serialises inference; the classifier is single-caller.
	mu             sync.Mutex
	classifier     Classifier
	log            logger.Logger
	metrics        *metrics.Manager
	maxUploadBytes int64
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// WithMetrics records request counts and exposes /metrics.
func WithMetrics(m *metrics.Manager) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithMaxUploadBytes caps multipart uploads.
func WithMaxUploadBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

func NewHandler(classifier Classifier, opts ...Option) *Handler {
	h := &Handler{
		classifier:     classifier,
		log:            logger.Nop(),
		maxUploadBytes: 10 << 20,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.classifier.Metadata())
}

func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.PredictionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	meta := h.classifier.Metadata()
	img := model.Image(req.Pixels)
	if img != nil && !square(img, meta.ImageSize) {
		http.Error(w, fmt.Sprintf("Expected %dx%d pixels", meta.ImageSize, meta.ImageSize), http.StatusBadRequest)
		return
	}
	if img == nil {
		expectedSize := meta.ImageSize * meta.ImageSize
		if len(req.Image) != expectedSize {
			http.Error(w, fmt.Sprintf("Expected %d values, got %d", expectedSize, len(req.Image)),
				http.StatusBadRequest)
			return
		}
		img = preprocess.Rows(req.Image, meta.ImageSize)
	}

	h.classify(w, r, img)
}

func (h *Handler) PredictFromImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "No image file provided. Use 'image' as the form field name", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ctx := r.Context()
	h.log.Debug(ctx, "received upload", logger.String("file", header.Filename), logger.Any("size", header.Size))

	img, format, err := image.Decode(file)
	if err != nil {
		http.Error(w, "Invalid image format. Supported: JPEG, PNG", http.StatusBadRequest)
		return
	}

	h.log.Debug(ctx, "decoded upload",
		logger.String("format", format),
		logger.Int("width", img.Bounds().Dx()),
		logger.Int("height", img.Bounds().Dy()))

	h.classify(w, r, preprocess.Grayscale(img, h.classifier.Metadata().ImageSize))
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request, img model.Image) {
	h.mu.Lock()
	result, err := h.classifier.Classify(r.Context(), img)
	h.mu.Unlock()
	if err != nil {
		h.log.Error(r.Context(), "prediction failed", logger.String("request_id", RequestID(r.Context())), logger.Error(err))
		http.Error(w, "Prediction failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func square(img model.Image, size int) bool {
	if len(img) != size {
		return false
	}
	for _, row := range img {
		if len(row) != size {
			return false
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
