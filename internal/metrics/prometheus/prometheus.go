package prometheus

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/slok/extagger/internal/metrics"
	"github.com/slok/extagger/internal/model"
)

const prefix = "extagger"

// Recorder is a Prometheus metrics.Recorder.
type Recorder struct {
	invocationDuration *prometheus.HistogramVec
	extractedValues    *prometheus.CounterVec
}

var _ metrics.Recorder = &Recorder{}

// NewRecorder returns a new Prometheus recorder registered on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		invocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prefix,
			Subsystem: "tag",
			Name:      "invocation_duration_seconds",
			Help:      "The duration of the external handler invocations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"stage", "success"}),

		extractedValues: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prefix,
			Subsystem: "tag",
			Name:      "extracted_values_total",
			Help:      "The total number of metadata values extracted from the external process output.",
		}, []string{"stream"}),
	}

	for _, c := range []prometheus.Collector{r.invocationDuration, r.extractedValues} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Recorder) ObserveTagInvocation(_ context.Context, stage model.Stage, success bool, duration time.Duration) {
	r.invocationDuration.WithLabelValues(string(stage), strconv.FormatBool(success)).Observe(duration.Seconds())
}

func (r *Recorder) AddExtractedValues(_ context.Context, stream model.Stream, n int) {
	r.extractedValues.WithLabelValues(string(stream)).Add(float64(n))
}
