package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager()

			Convey("Then it should own a registry", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Registry(), ShouldNotBeNil)
			})
		})

		Convey("When creating two managers without a registry", func() {
			So(func() {
				NewManager()
				NewManager()
			}, ShouldNotPanic)
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithRegistry(registry),
			)

			Convey("Then metrics are registered on the given registry", func() {
				manager.RecordCheckpointMissing()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "test_unit_checkpoint_missing_total")
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		manager := NewManager()

		Convey("When recording predictions", func() {
			manager.RecordPrediction("happy", 3*time.Millisecond)
			manager.RecordPrediction("happy", 4*time.Millisecond)
			manager.RecordPrediction("sad", 5*time.Millisecond)

			Convey("Then counts are kept per label", func() {
				So(testutil.ToFloat64(manager.predictions.WithLabelValues("happy")), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.predictions.WithLabelValues("sad")), ShouldEqual, 1)
			})
		})

		Convey("When recording checkpoint and driver events", func() {
			manager.RecordCheckpointLoaded()
			manager.RecordFace("multiface")
			manager.RecordFace("multiface")
			manager.RecordPredictionError()

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(manager.checkpointsLoaded), ShouldEqual, 1)
				So(testutil.ToFloat64(manager.facesProcessed.WithLabelValues("multiface")), ShouldEqual, 2)
				So(testutil.ToFloat64(manager.predictionErrors), ShouldEqual, 1)
			})
		})

		Convey("When scraping the handler", func() {
			manager.RecordHTTPRequest("/predict", "POST", "200", time.Millisecond)
			rec := httptest.NewRecorder()
			manager.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

			Convey("Then the exposition contains the request counter", func() {
				So(rec.Code, ShouldEqual, 200)
				So(rec.Body.String(), ShouldContainSubstring, "fer_classifier_http_requests_total")
			})
		})
	})
}
