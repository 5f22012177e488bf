package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounselMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCounselMetrics(reg)

	m.ObserveTurn("5", true)
	m.ObserveTurn("1", false)
	m.ObserveTurn("5", true)
	m.ObserveNeed("listening", "default")
	m.ObserveGenerationFailure("rate_limited")
	m.ObserveLLMCall("gemini-2.5-flash", "reply", "ok", 0.7)
	m.ObserveTokens("gemini-2.5-flash", 10, 20, 30)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("5")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turnsTotal.WithLabelValues("1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.resourcesShown))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.needTotal.WithLabelValues("listening", "default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generationFailures.WithLabelValues("rate_limited")))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.llmTokens.WithLabelValues("gemini-2.5-flash", "total")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
}

func TestCounselMetricsLatencyHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCounselMetrics(reg)
	m.ObserveLLMCall("model-a", "need", "error", 1.5)

	families, err := reg.Gather()
	require.NoError(t, err)

	var hist *dto.Histogram
	for _, fam := range families {
		if fam.GetName() == "counsel_llm_latency_seconds" {
			require.Len(t, fam.GetMetric(), 1)
			hist = fam.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, hist)
	assert.Equal(t, uint64(1), hist.GetSampleCount())
	assert.InDelta(t, 1.5, hist.GetSampleSum(), 1e-9)
}

func TestCounselMetricsSkipsZeroTokens(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCounselMetrics(reg)
	m.ObserveTokens("model-a", 0, 0, 0)
	assert.Equal(t, 0, testutil.CollectAndCount(m.llmTokens))
}

func TestCounselMetricsNilSafe(t *testing.T) {
	var m *CounselMetrics
	m.ObserveTurn("4", true)
	m.ObserveNeed("solution", "model")
	m.ObserveGenerationFailure("auth")
	m.ObserveLLMCall("m", "reply", "ok", 0.1)
	m.ObserveTokens("m", 1, 1, 2)
	m.SessionOpened()
	m.SessionClosed()
}
