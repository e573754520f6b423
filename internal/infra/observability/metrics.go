package observability

import (
	"time"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the coach engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration    *prometheus.HistogramVec
	collaboratorCalls  *prometheus.CounterVec
	collaboratorErrors *prometheus.CounterVec
	busyRejections     *prometheus.CounterVec
	tokensUsed         *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	routinesGenerated  prometheus.Counter
	analysesCaptured   prometheus.Counter
	stepToggles        *prometheus.CounterVec
	calendarExports    prometheus.Counter
	chatMessages       *prometheus.CounterVec
	sessionLookups     *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests call NewMetrics
// repeatedly without duplicate collector panics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "elowen_request_duration_seconds",
				Help:    "Duration of operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		collaboratorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_collaborator_calls_total",
				Help: "Total calls to the AI collaborator.",
			},
			[]string{"operation"},
		),
		collaboratorErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_collaborator_errors_total",
				Help: "Total failed calls to the AI collaborator.",
			},
			[]string{"operation"},
		),
		busyRejections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_busy_rejections_total",
				Help: "Actions rejected because a collaborator call was in flight.",
			},
			[]string{"action"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "elowen_active_sessions",
				Help: "Sessions currently held in memory.",
			},
		),
		routinesGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "elowen_routines_generated_total",
				Help: "Routines committed to a profile.",
			},
		),
		analysesCaptured: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "elowen_analyses_captured_total",
				Help: "Skin analyses appended to a profile.",
			},
		),
		stepToggles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_step_toggles_total",
				Help: "Routine step completion toggles.",
			},
			[]string{"period", "result"},
		),
		calendarExports: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "elowen_calendar_exports_total",
				Help: "Calendar documents exported.",
			},
		),
		chatMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_chat_messages_total",
				Help: "Coach transcript messages by role.",
			},
			[]string{"role"},
		),
		sessionLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elowen_session_lookups_total",
				Help: "Session registry lookups.",
			},
			[]string{"result"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrCollaboratorCall counts one collaborator call.
func (m *Metrics) IncrCollaboratorCall(operation string) {
	m.collaboratorCalls.WithLabelValues(operation).Inc()
}

// IncrCollaboratorError counts one failed collaborator call.
func (m *Metrics) IncrCollaboratorError(operation string) {
	m.collaboratorErrors.WithLabelValues(operation).Inc()
}

// IncrBusyRejection counts an action refused by the busy gate.
func (m *Metrics) IncrBusyRejection(action string) {
	m.busyRejections.WithLabelValues(action).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() { m.activeSessions.Inc() }

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() { m.activeSessions.Dec() }

// IncrRoutineGenerated counts a committed routine.
func (m *Metrics) IncrRoutineGenerated() { m.routinesGenerated.Inc() }

// IncrAnalysisCaptured counts an appended analysis.
func (m *Metrics) IncrAnalysisCaptured() { m.analysesCaptured.Inc() }

// IncrCalendarExport counts an exported calendar document.
func (m *Metrics) IncrCalendarExport() { m.calendarExports.Inc() }

// IncrStepToggle counts a toggle; found is false for stale ids.
func (m *Metrics) IncrStepToggle(period string, found bool) {
	result := "toggled"
	if !found {
		result = "not_found"
	}
	m.stepToggles.WithLabelValues(period, result).Inc()
}

// IncrChatMessage counts a transcript message.
func (m *Metrics) IncrChatMessage(role string) {
	m.chatMessages.WithLabelValues(role).Inc()
}

// IncrSessionLookup counts a registry lookup.
func (m *Metrics) IncrSessionLookup(hit bool) {
	if hit {
		m.sessionLookups.WithLabelValues("hit").Inc()
		return
	}
	m.sessionLookups.WithLabelValues("miss").Inc()
}

// GetCoachSnapshot returns a snapshot of engine metrics suitable for the
// GET /v1/metrics/coach endpoint. Values are cumulative since start.
func (m *Metrics) GetCoachSnapshot() *domain.CoachMetrics {
	calls := sumCounterVec(m.collaboratorCalls)
	errs := sumCounterVec(m.collaboratorErrors)
	tokens := sumCounterVec(m.tokensUsed)
	hits := counterValue(m.sessionLookups.WithLabelValues("hit"))
	misses := counterValue(m.sessionLookups.WithLabelValues("miss"))

	errorRate := float64(0)
	avgTokens := float64(0)
	hitRate := float64(0)
	if calls > 0 {
		errorRate = errs / calls
		avgTokens = tokens / calls
	}
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.CoachMetrics{
		ActiveSessions:       int64(gaugeValue(m.activeSessions)),
		RoutinesGenerated:    int64(counterValue(m.routinesGenerated)),
		AnalysesCaptured:     int64(counterValue(m.analysesCaptured)),
		CalendarExports:      int64(counterValue(m.calendarExports)),
		CollaboratorCalls:    int64(calls),
		CollaboratorErrors:   int64(errs),
		ErrorRate:            errorRate,
		BusyRejections:       int64(sumCounterVec(m.busyRejections)),
		AvgTokensPerCall:     avgTokens,
		SessionLookupHitRate: hitRate,
		Period:               "all_time",
	}
}

func counterValue(c prometheus.Metric) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func gaugeValue(g prometheus.Gauge) float64 {
	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		return 0
	}
	if m.Gauge != nil && m.Gauge.Value != nil {
		return *m.Gauge.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of cv.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := 0.0
	for metric := range ch {
		total += counterValue(metric)
	}
	return total
}
