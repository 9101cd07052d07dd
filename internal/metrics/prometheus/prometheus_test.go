package prometheus_test

import (
	"context"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/extagger/internal/metrics/prometheus"
	"github.com/slok/extagger/internal/model"
)

func TestRecorder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	reg := prom.NewRegistry()
	rec, err := prometheus.NewRecorder(reg)
	require.NoError(err)

	ctx := context.TODO()
	rec.ObserveTagInvocation(ctx, model.StageDone, true, 250*time.Millisecond)
	rec.ObserveTagInvocation(ctx, model.StageRunProcess, false, time.Second)
	rec.AddExtractedValues(ctx, model.StreamStdout, 3)
	rec.AddExtractedValues(ctx, model.StreamStdout, 2)
	rec.AddExtractedValues(ctx, model.StreamStderr, 1)

	expected := `
# HELP extagger_tag_extracted_values_total The total number of metadata values extracted from the external process output.
# TYPE extagger_tag_extracted_values_total counter
extagger_tag_extracted_values_total{stream="stderr"} 1
extagger_tag_extracted_values_total{stream="stdout"} 5
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "extagger_tag_extracted_values_total")
	assert.NoError(err)

	count, err := testutil.GatherAndCount(reg, "extagger_tag_invocation_duration_seconds")
	require.NoError(err)
	assert.Equal(2, count)

	// Registering twice on the same registry should fail.
	_, err = prometheus.NewRecorder(reg)
	assert.Error(err)
}
