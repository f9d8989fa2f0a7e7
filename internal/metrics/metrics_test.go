package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIncrementAndAdd(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("requests", nil, "total requests")
	r.IncrementCounter("requests", nil, "total requests")
	r.AddToCounter("requests", 3, nil, "total requests")

	snap := r.Snapshot()
	counters, ok := snap["counters"].(map[string]Metric)
	require.True(t, ok)

	m, exists := counters["requests"]
	require.True(t, exists)
	assert.Equal(t, float64(5), m.Value)
	assert.Equal(t, int64(3), m.Count)
	assert.Equal(t, Counter, m.Type)
}

func TestCounterLabelsCreateSeparateSeries(t *testing.T) {
	r := NewRegistry()

	r.IncrementCounter("ops", map[string]string{"kind": "edit"}, "")
	r.IncrementCounter("ops", map[string]string{"kind": "delete"}, "")
	r.IncrementCounter("ops", map[string]string{"kind": "edit"}, "")

	counters := r.Snapshot()["counters"].(map[string]Metric)
	assert.Len(t, counters, 2)
	assert.Equal(t, float64(2), counters["ops,kind=edit"].Value)
	assert.Equal(t, float64(1), counters["ops,kind=delete"].Value)
}

func TestGaugeSetOverwrites(t *testing.T) {
	r := NewRegistry()

	r.SetGauge("backend_connected", 1, nil, "")
	r.SetGauge("backend_connected", 0, nil, "")

	gauges := r.Snapshot()["gauges"].(map[string]Metric)
	m, exists := gauges["backend_connected"]
	require.True(t, exists)
	assert.Equal(t, float64(0), m.Value)
	assert.Equal(t, Gauge, m.Type)
}

func TestTimerAggregates(t *testing.T) {
	r := NewRegistry()

	r.RecordTimer("send_duration", 100*time.Millisecond, nil, "")
	r.RecordTimer("send_duration", 300*time.Millisecond, nil, "")

	timers := r.Snapshot()["timers"].(map[string]TimerMetric)
	tm, exists := timers["send_duration"]
	require.True(t, exists)
	assert.Equal(t, int64(2), tm.Count)
	assert.Equal(t, float64(400), tm.Sum)
	assert.Equal(t, float64(100), tm.Min)
	assert.Equal(t, float64(300), tm.Max)
	assert.Equal(t, float64(200), tm.Average)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("requests", nil, "")

	first := r.Snapshot()["counters"].(map[string]Metric)
	r.IncrementCounter("requests", nil, "")
	second := r.Snapshot()["counters"].(map[string]Metric)

	assert.Equal(t, float64(1), first["requests"].Value)
	assert.Equal(t, float64(2), second["requests"].Value)
}

func TestReset(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter("requests", nil, "")
	r.SetGauge("queue_depth", 4, nil, "")
	r.RecordTimer("latency", time.Millisecond, nil, "")

	r.Reset()

	snap := r.Snapshot()
	assert.Empty(t, snap["counters"].(map[string]Metric))
	assert.Empty(t, snap["gauges"].(map[string]Metric))
	assert.Empty(t, snap["timers"].(map[string]TimerMetric))
}

func TestMetricKeyOrdersLabels(t *testing.T) {
	r := NewRegistry()

	// Insertion order of the label map must not create distinct series.
	r.IncrementCounter("m", map[string]string{"a": "1", "b": "2"}, "")
	r.IncrementCounter("m", map[string]string{"b": "2", "a": "1"}, "")

	counters := r.Snapshot()["counters"].(map[string]Metric)
	require.Len(t, counters, 1)
	assert.Equal(t, float64(2), counters["m,a=1,b=2"].Value)
}
