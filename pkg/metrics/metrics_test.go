package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.JobsSubmitted.Inc()
	m.RecordJobTerminal(false)
	m.RecordJobTerminal(true)
	m.RecordAnalyzer("stage_a", "say_means", 1.5, false)
	m.RecordAnalyzer("stage_a", "say_means", 0.5, true)
	m.RecordTokens(100, 40)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.JobsFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyzerErrors.WithLabelValues("stage_a", "say_means")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.TokensUsed.WithLabelValues("prompt")))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.TokensUsed.WithLabelValues("completion")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordAnalyzer("stage_a", "x", 1, true)
	m.RecordTokens(1, 1)
	m.RecordJobTerminal(false)
}
