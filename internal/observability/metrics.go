// Package observability holds the Prometheus metrics and the
// OpenTelemetry tracer of the compiler.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer creates the spans around compile phases and runs. Without a
// configured provider it is a no-op.
var Tracer trace.Tracer = otel.Tracer("github.com/kolkov/narlie")

// Fail marks span as failed with err. A nil err leaves span untouched.
func Fail(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// Phase labels.
const (
	PhaseParse    = "parse"
	PhaseCodegen  = "codegen"
	PhaseRun      = "run"
	ResultOK      = "ok"
	ResultFailure = "error"
)

// Metrics definitions
var (
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "narlie_phase_seconds",
		Help:    "Time spent in a compilation or execution phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	CompilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narlie_compiles_total",
		Help: "Total number of compilations by result.",
	}, []string{"result"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narlie_runs_total",
		Help: "Total number of program runs by result.",
	}, []string{"result"})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narlie_cache_hits_total",
		Help: "Total number of compilations served from the artifact cache.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narlie_cache_misses_total",
		Help: "Total number of artifact cache lookups that missed.",
	})

	WatchEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narlie_watch_events_total",
		Help: "Total number of file system events received in watch mode.",
	})
)

// Result returns the result label for err.
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultOK
}
