package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Brownie44l1/fer-emotion/internal/handlers"
	"github.com/Brownie44l1/fer-emotion/internal/model"
	"github.com/Brownie44l1/fer-emotion/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type stubClassifier struct {
	got model.Image
	err error
}

func (s *stubClassifier) Classify(_ context.Context, img model.Image) (*model.PredictionResponse, error) {
	s.got = img
	if s.err != nil {
		return nil, s.err
	}
	return &model.PredictionResponse{
		Class:       "surprised",
		Confidence:  0.9,
		Predictions: map[string]float32{"surprised": 0.9, "neutral": 0.1},
	}, nil
}

func (s *stubClassifier) Metadata() model.Metadata {
	labels := model.EmotionLabels()
	return model.Metadata{
		InputShape:  []int64{1, 48, 48, 1},
		OutputShape: []int64{1, 7},
		Classes:     labels[:],
		ImageSize:   48,
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func pngUpload(t *testing.T, w, h int) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "face.png")
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(part, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func TestHandlers(t *testing.T) {
	Convey("Given the HTTP routes over a stub classifier", t, func() {
		stub := &stubClassifier{}
		mm := metrics.NewManager()
		routes := handlers.NewHandler(stub, handlers.WithMetrics(mm)).Routes()

		Convey("When checking health", func() {
			rec := serve(routes, httptest.NewRequest(http.MethodGet, "/health", nil))

			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `"healthy"`)
			So(rec.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
			So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
		})

		Convey("When a request ID is supplied", func() {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.Header.Set("X-Request-ID", "abc-123")
			rec := serve(routes, req)
			So(rec.Header().Get("X-Request-ID"), ShouldEqual, "abc-123")
		})

		Convey("When reading metadata", func() {
			rec := serve(routes, httptest.NewRequest(http.MethodGet, "/metadata", nil))
			var meta model.Metadata
			So(json.Unmarshal(rec.Body.Bytes(), &meta), ShouldBeNil)
			So(meta.Classes, ShouldHaveLength, 7)
			So(meta.ImageSize, ShouldEqual, 48)
		})

		Convey("When posting a flat pixel array", func() {
			body, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 48*48)})
			rec := serve(routes, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))

			Convey("Then the classifier sees a 48x48 grid", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(stub.got), ShouldEqual, 48)
				So(len(stub.got[0]), ShouldEqual, 48)
				var resp model.PredictionResponse
				So(json.Unmarshal(rec.Body.Bytes(), &resp), ShouldBeNil)
				So(resp.Class, ShouldEqual, "surprised")
			})
		})

		Convey("When posting a 2-D pixel grid", func() {
			pixels := make([][]float32, 48)
			for i := range pixels {
				pixels[i] = make([]float32, 48)
			}
			body, _ := json.Marshal(model.PredictionRequest{Pixels: pixels})
			rec := serve(routes, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(len(stub.got), ShouldEqual, 48)
		})

		Convey("When the flat array has the wrong size", func() {
			body, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 10)})
			rec := serve(routes, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(rec.Body.String(), ShouldContainSubstring, "Expected 2304 values, got 10")
		})

		Convey("When the pixel grid is ragged", func() {
			body, _ := json.Marshal(model.PredictionRequest{Pixels: [][]float32{{1, 2}, {3}}})
			rec := serve(routes, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(stub.got, ShouldBeNil)
		})

		Convey("When the body is not JSON", func() {
			rec := serve(routes, httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader("{")))
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When using the wrong method", func() {
			rec := serve(routes, httptest.NewRequest(http.MethodGet, "/predict", nil))
			So(rec.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("When a preflight request arrives", func() {
			rec := serve(routes, httptest.NewRequest(http.MethodOptions, "/predict", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(stub.got, ShouldBeNil)
		})

		Convey("When the classifier fails", func() {
			stub.err = errors.New("boom")
			body, _ := json.Marshal(model.PredictionRequest{Image: make([]float32, 48*48)})
			rec := serve(routes, httptest.NewRequest(http.MethodPost, "/predict", bytes.NewReader(body)))
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When uploading an image", func() {
			body, contentType := pngUpload(t, 100, 80)
			req := httptest.NewRequest(http.MethodPost, "/predict/image", body)
			req.Header.Set("Content-Type", contentType)
			rec := serve(routes, req)

			Convey("Then it is resized to the model input", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(len(stub.got), ShouldEqual, 48)
				So(len(stub.got[0]), ShouldEqual, 48)
			})
		})

		Convey("When the upload has no image field", func() {
			var body bytes.Buffer
			mw := multipart.NewWriter(&body)
			So(mw.WriteField("other", "x"), ShouldBeNil)
			So(mw.Close(), ShouldBeNil)
			req := httptest.NewRequest(http.MethodPost, "/predict/image", &body)
			req.Header.Set("Content-Type", mw.FormDataContentType())
			rec := serve(routes, req)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When scraping metrics after a request", func() {
			serve(routes, httptest.NewRequest(http.MethodGet, "/health", nil))
			rec := serve(routes, httptest.NewRequest(http.MethodGet, "/metrics", nil))
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(rec.Body.String(), ShouldContainSubstring, `endpoint="/health"`)
		})
	})
}
