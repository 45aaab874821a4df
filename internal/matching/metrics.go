package matching

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	matchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_attempts_total",
			Help: "Total number of find-next-match attempts",
		},
		[]string{"outcome"},
	)

	attemptDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_attempt_duration_seconds",
			Help:    "Latency of find-next-match attempts",
			Buckets: prometheus.DefBuckets,
		},
	)

	candidatesScanned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_candidates_scanned",
			Help:    "Candidate rows scanned per attempt",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	indexFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_index_fallbacks_total",
			Help: "Retrievals that widened from the location index to a full scan",
		},
	)

	mutualMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_mutual_matches_total",
			Help: "Total number of mutual matches created",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	queueMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_queue_messages_total",
			Help: "Queue messages by disposition",
		},
		[]string{"result"},
	)

	presentationsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_presentations_expired_total",
			Help: "Presentations released after exceeding their TTL",
		},
	)
)

// Attempt outcomes.
const (
	OutcomeMatched = "matched"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

// RecordMutualMatch counts a newly created mutual match.
func RecordMutualMatch() {
	mutualMatches.Inc()
}

// RecordCompatibilityScore observes one computed score.
func RecordCompatibilityScore(score int) {
	compatibilityScores.Observe(float64(score))
}

// RecordQueueMessage counts a queue message disposition ("ok", "retry",
// "dead_letter").
func RecordQueueMessage(result string) {
	queueMessages.WithLabelValues(result).Inc()
}

// RecordExpiredPresentations counts released presentation slots.
func RecordExpiredPresentations(n int64) {
	presentationsExpired.Add(float64(n))
}

// AlertFunc receives threshold crossings. Purely observational: the sink
// never blocks or mutates the matching path.
type AlertFunc func(metric string, value, threshold float64)

// SinkConfig sets the alert thresholds and the rolling window size.
type SinkConfig struct {
	LatencyP95Threshold time.Duration
	ScannedP95Threshold int
	Cooldown            time.Duration
	WindowSize          int

	// OnAlert defaults to a log line when nil.
	OnAlert AlertFunc
}

// Sink records per-attempt latency, scan volume and outcome. Prometheus
// carries the exported series; a small rolling window backs the process-local
// percentile snapshot the threshold alerts are evaluated against.
type Sink struct {
	mu        sync.Mutex
	latencies *window
	scanned   *window
	lastAlert map[string]time.Time
	cfg       SinkConfig
}

// NewSink creates a Sink from config.
func NewSink(cfg SinkConfig) *Sink {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 1024
	}
	if cfg.OnAlert == nil {
		cfg.OnAlert = func(metric string, value, threshold float64) {
			log.Printf("ALERT %s: %.3f exceeds threshold %.3f", metric, value, threshold)
		}
	}

	return &Sink{
		latencies: newWindow(cfg.WindowSize),
		scanned:   newWindow(cfg.WindowSize),
		lastAlert: make(map[string]time.Time),
		cfg:       cfg,
	}
}

// ObserveAttempt records one completed find-next-match attempt.
func (s *Sink) ObserveAttempt(d time.Duration, scanned int, outcome string, widened bool) {
	matchAttempts.WithLabelValues(outcome).Inc()
	attemptDuration.Observe(d.Seconds())
	candidatesScanned.Observe(float64(scanned))
	if widened {
		indexFallbacks.Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latencies.add(d.Seconds())
	s.scanned.add(float64(scanned))
	s.checkThresholds()
}

// Snapshot exposes the rolling percentile aggregates.
type Snapshot struct {
	LatencyP50 time.Duration
	LatencyP95 time.Duration
	LatencyP99 time.Duration
	ScannedP50 int
	ScannedP95 int
	ScannedP99 int
}

// Percentiles returns the current rolling aggregates.
func (s *Sink) Percentiles() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		LatencyP50: secondsToDuration(s.latencies.percentile(0.50)),
		LatencyP95: secondsToDuration(s.latencies.percentile(0.95)),
		LatencyP99: secondsToDuration(s.latencies.percentile(0.99)),
		ScannedP50: int(s.scanned.percentile(0.50)),
		ScannedP95: int(s.scanned.percentile(0.95)),
		ScannedP99: int(s.scanned.percentile(0.99)),
	}
}

// checkThresholds raises at most one alert per metric per cooldown window.
// Caller holds the mutex.
func (s *Sink) checkThresholds() {
	now := time.Now()

	if th := s.cfg.LatencyP95Threshold; th > 0 {
		if p95 := s.latencies.percentile(0.95); p95 > th.Seconds() {
			s.raise("latency_p95", p95, th.Seconds(), now)
		}
	}

	if th := s.cfg.ScannedP95Threshold; th > 0 {
		if p95 := s.scanned.percentile(0.95); p95 > float64(th) {
			s.raise("scanned_p95", p95, float64(th), now)
		}
	}
}

func (s *Sink) raise(metric string, value, threshold float64, now time.Time) {
	if last, ok := s.lastAlert[metric]; ok && now.Sub(last) < s.cfg.Cooldown {
		return
	}
	s.lastAlert[metric] = now
	s.cfg.OnAlert(metric, value, threshold)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// window is a fixed-size ring of recent observations.
type window struct {
	values []float64
	next   int
	filled bool
}

func newWindow(size int) *window {
	return &window{values: make([]float64, size)}
}

func (w *window) add(v float64) {
	w.values[w.next] = v
	w.next++
	if w.next == len(w.values) {
		w.next = 0
		w.filled = true
	}
}

func (w *window) percentile(q float64) float64 {
	n := w.next
	if w.filled {
		n = len(w.values)
	}
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, w.values[:n])
	sort.Float64s(sorted)

	idx := int(math.Ceil(q*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}

	return sorted[idx]
}
