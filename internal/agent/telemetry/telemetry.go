package telemetry

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/finsense/config"
)

// Telemetry provides run and agent monitoring: in-process aggregates for quick
// inspection plus prometheus collectors for scraping.
type Telemetry struct {
	config  config.TelemetryConfig
	logger  *log.Logger
	metrics *Metrics
	mu      sync.RWMutex

	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	agentsTotal   *prometheus.CounterVec
	agentDuration *prometheus.HistogramVec
}

// Metrics holds aggregate performance metrics
type Metrics struct {
	mu sync.RWMutex

	// Run metrics
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64
	AverageRunTime time.Duration

	// Agent metrics
	AgentExecutions   map[string]int64
	AgentFailures     map[string]int64
	AgentAverageTimes map[string]time.Duration
}

// RunEvent represents a complete run of the pipeline
type RunEvent struct {
	ID         string
	Input      string
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Steps      int
	Success    bool
	Error      string
	AgentsUsed []string
}

// AgentEvent represents a single agent invocation
type AgentEvent struct {
	AgentID   string
	Status    string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Error     string
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	registry := prometheus.NewRegistry()
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		registry: registry,
		metrics: &Metrics{
			AgentExecutions:   make(map[string]int64),
			AgentFailures:     make(map[string]int64),
			AgentAverageTimes: make(map[string]time.Duration),
		},
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsense",
			Name:      "runs_total",
			Help:      "Completed orchestration runs by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "finsense",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of orchestration runs.",
			Buckets:   prometheus.DefBuckets,
		}),
		agentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "finsense",
			Name:      "agent_invocations_total",
			Help:      "Agent invocations by agent id and reported status.",
		}, []string{"agent", "status"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "finsense",
			Name:      "agent_invocation_duration_seconds",
			Help:      "Duration of individual agent invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent"}),
	}

	registry.MustRegister(t.runsTotal, t.runDuration, t.agentsTotal, t.agentDuration)

	if cfg.Enabled && cfg.PeriodicLogs {
		go t.startMetricsReporting()
	}

	return t
}

// RecordRunEvent records a complete run
func (t *Telemetry) RecordRunEvent(ctx context.Context, event RunEvent) {
	if !t.config.Enabled {
		return
	}

	result := "success"
	if !event.Success {
		result = "failure"
	}
	t.runsTotal.WithLabelValues(result).Inc()
	t.runDuration.Observe(event.Duration.Seconds())

	t.metrics.mu.Lock()
	defer t.metrics.mu.Unlock()
	t.metrics.TotalRuns++
	if event.Success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
	// Rolling average over all runs
	total := time.Duration(t.metrics.TotalRuns-1) * t.metrics.AverageRunTime
	t.metrics.AverageRunTime = (total + event.Duration) / time.Duration(t.metrics.TotalRuns)
}

// RecordAgentEvent records a single agent invocation
func (t *Telemetry) RecordAgentEvent(ctx context.Context, event AgentEvent) {
	if !t.config.Enabled {
		return
	}

	status := event.Status
	if status == "" {
		status = "ERROR"
	}
	t.agentsTotal.WithLabelValues(event.AgentID, status).Inc()
	t.agentDuration.WithLabelValues(event.AgentID).Observe(event.Duration.Seconds())

	t.metrics.mu.Lock()
	defer t.metrics.mu.Unlock()
	count := t.metrics.AgentExecutions[event.AgentID]
	t.metrics.AgentExecutions[event.AgentID] = count + 1
	if !event.Success {
		t.metrics.AgentFailures[event.AgentID]++
	}
	avg := t.metrics.AgentAverageTimes[event.AgentID]
	t.metrics.AgentAverageTimes[event.AgentID] = (time.Duration(count)*avg + event.Duration) / time.Duration(count+1)
}

// Snapshot returns a copy of the aggregate metrics
func (t *Telemetry) Snapshot() Metrics {
	t.metrics.mu.RLock()
	defer t.metrics.mu.RUnlock()

	out := Metrics{
		TotalRuns:         t.metrics.TotalRuns,
		SuccessfulRuns:    t.metrics.SuccessfulRuns,
		FailedRuns:        t.metrics.FailedRuns,
		AverageRunTime:    t.metrics.AverageRunTime,
		AgentExecutions:   make(map[string]int64, len(t.metrics.AgentExecutions)),
		AgentFailures:     make(map[string]int64, len(t.metrics.AgentFailures)),
		AgentAverageTimes: make(map[string]time.Duration, len(t.metrics.AgentAverageTimes)),
	}
	for k, v := range t.metrics.AgentExecutions {
		out.AgentExecutions[k] = v
	}
	for k, v := range t.metrics.AgentFailures {
		out.AgentFailures[k] = v
	}
	for k, v := range t.metrics.AgentAverageTimes {
		out.AgentAverageTimes[k] = v
	}
	return out
}

// Handler exposes the prometheus collectors for scraping
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// startMetricsReporting periodically logs aggregate metrics
func (t *Telemetry) startMetricsReporting() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m := t.Snapshot()
		t.logger.Printf("runs: total=%d ok=%d failed=%d avg=%v agents=%d",
			m.TotalRuns, m.SuccessfulRuns, m.FailedRuns, m.AverageRunTime, len(m.AgentExecutions))
	}
}
