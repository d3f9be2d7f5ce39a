package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/go-go-golems/kraken-agui/pkg/events"
	"github.com/go-go-golems/kraken-agui/pkg/inference/tools"
	"github.com/go-go-golems/kraken-agui/pkg/run"
)

const namespace = "kraken_agui"

// Metrics are the Prometheus collectors of one server. Each server owns its
// registry so several can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal       *prometheus.CounterVec
	RunDuration     *prometheus.HistogramVec
	RunsInFlight    prometheus.Gauge
	ToolCallsTotal  *prometheus.CounterVec
	ToolDuration    *prometheus.HistogramVec
	FramesTotal     *prometheus.CounterVec
	DirectCallTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Runs by final status and error code",
		}, []string{"status", "code"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of runs from start to terminal event",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"status"}),
		RunsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Runs currently streaming",
		}),
		ToolCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and status",
		}, []string{"tool", "status"}),
		ToolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Duration of tool invocations",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),
		FramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Stream frames written by event type",
		}, []string{"type"}),
		DirectCallTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "direct_tool_calls_total",
			Help:      "Direct tool invocations by tool and HTTP status",
		}, []string{"tool", "code"}),
	}
}

func status(failed bool) string {
	if failed {
		return "error"
	}
	return "ok"
}

// ObserveTool is an executor observer.
func (m *Metrics) ObserveTool(call tools.ToolCall, res *tools.ToolResult) {
	m.ToolCallsTotal.WithLabelValues(call.Name, status(res.Failed())).Inc()
	m.ToolDuration.WithLabelValues(call.Name).Observe(res.Duration.Seconds())
}

// ObserveRun is a coordinator observer.
func (m *Metrics) ObserveRun(r *run.Run, elapsed time.Duration) {
	code := "none"
	if r.Err != nil {
		code = run.ErrorCode(r.Err)
	}
	m.RunsTotal.WithLabelValues(string(r.Status), code).Inc()
	m.RunDuration.WithLabelValues(string(r.Status)).Observe(elapsed.Seconds())
}

// ObserveFrame is a stream frame observer.
func (m *Metrics) ObserveFrame(e events.Event) {
	m.FramesTotal.WithLabelValues(string(e.Type())).Inc()
}
