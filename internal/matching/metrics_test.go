package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSinkPercentiles(t *testing.T) {
	t.Parallel()

	sink := NewSink(SinkConfig{WindowSize: 256, OnAlert: func(string, float64, float64) {}})

	for i := 1; i <= 100; i++ {
		sink.ObserveAttempt(time.Duration(i)*time.Millisecond, i, OutcomeMatched, false)
	}

	// Latencies round-trip through seconds, so compare within a microsecond.
	snap := sink.Percentiles()
	assert.InDelta(t, float64(50*time.Millisecond), float64(snap.LatencyP50), float64(time.Microsecond))
	assert.InDelta(t, float64(95*time.Millisecond), float64(snap.LatencyP95), float64(time.Microsecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(snap.LatencyP99), float64(time.Microsecond))
	assert.Equal(t, 50, snap.ScannedP50)
	assert.Equal(t, 95, snap.ScannedP95)
}

func TestSinkWindowEvictsOldObservations(t *testing.T) {
	t.Parallel()

	sink := NewSink(SinkConfig{WindowSize: 10, OnAlert: func(string, float64, float64) {}})

	// Ten slow attempts, then ten fast ones push them out of the window.
	for i := 0; i < 10; i++ {
		sink.ObserveAttempt(time.Second, 500, OutcomeMatched, false)
	}
	for i := 0; i < 10; i++ {
		sink.ObserveAttempt(time.Millisecond, 5, OutcomeMatched, false)
	}

	snap := sink.Percentiles()
	assert.InDelta(t, float64(time.Millisecond), float64(snap.LatencyP95), float64(time.Microsecond))
	assert.Equal(t, 5, snap.ScannedP95)
}

func TestSinkAlertsOncePerCooldown(t *testing.T) {
	t.Parallel()

	alerts := make(map[string]int)
	sink := NewSink(SinkConfig{
		LatencyP95Threshold: time.Millisecond,
		ScannedP95Threshold: 100,
		Cooldown:            time.Hour,
		WindowSize:          64,
		OnAlert: func(metric string, _, _ float64) {
			alerts[metric]++
		},
	})

	for i := 0; i < 20; i++ {
		sink.ObserveAttempt(50*time.Millisecond, 500, OutcomeNoMatch, true)
	}

	assert.Equal(t, 1, alerts["latency_p95"], "repeat crossings inside the cooldown stay silent")
	assert.Equal(t, 1, alerts["scanned_p95"])
}

func TestSinkBelowThresholdStaysQuiet(t *testing.T) {
	t.Parallel()

	fired := false
	sink := NewSink(SinkConfig{
		LatencyP95Threshold: time.Second,
		ScannedP95Threshold: 1000,
		Cooldown:            time.Hour,
		OnAlert:             func(string, float64, float64) { fired = true },
	})

	for i := 0; i < 20; i++ {
		sink.ObserveAttempt(time.Millisecond, 10, OutcomeMatched, false)
	}

	assert.False(t, fired)
}
