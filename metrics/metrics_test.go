package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getCounterValue(t *testing.T, counter *prometheus.CounterVec, labels ...string) float64 {
	metric := &dto.Metric{}
	c, err := counter.GetMetricWithLabelValues(labels...)
	require.NoError(t, err)
	require.NoError(t, c.Write(metric))
	return metric.Counter.GetValue()
}

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	metric := &dto.Metric{}
	require.NoError(t, gauge.Write(metric))
	return metric.Gauge.GetValue()
}

func TestRecordEstimate(t *testing.T) {
	EstimatesTotal.Reset()
	EstimatesDegraded.Reset()

	RecordEstimate("ai")
	RecordEstimate("rules")
	RecordEstimate("rules")
	RecordEstimateDegraded("timeout")

	assert.Equal(t, 1.0, getCounterValue(t, EstimatesTotal, "ai"))
	assert.Equal(t, 2.0, getCounterValue(t, EstimatesTotal, "rules"))
	assert.Equal(t, 1.0, getCounterValue(t, EstimatesDegraded, "timeout"))
}

func TestRecordCompletion(t *testing.T) {
	CompletionsRecorded.Reset()

	RecordCompletion("large", 1.5)
	assert.Equal(t, 1.0, getCounterValue(t, CompletionsRecorded, "large"))
}

func TestRecordRecommendation(t *testing.T) {
	Recommendations.Reset()

	RecordRecommendation("heavy", 7)
	assert.Equal(t, 1.0, getCounterValue(t, Recommendations, "heavy"))
	assert.Equal(t, 7.0, getGaugeValue(t, AvailableHours))

	UpdatePaceFactor(1.25)
	assert.Equal(t, 1.25, getGaugeValue(t, PaceFactor))
}

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()

	RecordHTTPRequest("GET", "/api/tasks", "200", 10*time.Millisecond)
	assert.Equal(t, 1.0, getCounterValue(t, HTTPRequestsTotal, "GET", "/api/tasks", "200"))
}
