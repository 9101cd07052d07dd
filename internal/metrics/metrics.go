package metrics

import (
	"context"
	"time"

	"github.com/slok/extagger/internal/model"
)

// Recorder knows how to record tagging metrics.
type Recorder interface {
	// ObserveTagInvocation records a finished invocation, stage is the failed stage or
	// model.StageDone on success.
	ObserveTagInvocation(ctx context.Context, stage model.Stage, success bool, duration time.Duration)
	// AddExtractedValues records the number of values extracted from a stream.
	AddExtractedValues(ctx context.Context, stream model.Stream, n int)
}

// Noop is a Recorder that doesn't record anything.
const Noop = noop(0)

type noop int

func (noop) ObserveTagInvocation(_ context.Context, _ model.Stage, _ bool, _ time.Duration) {}
func (noop) AddExtractedValues(_ context.Context, _ model.Stream, _ int)                    {}
