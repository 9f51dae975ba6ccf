package metrics

import "time"

// Analysis paths recorded by AnalysisMetrics.
const (
	PathHybrid   = "hybrid"
	PathAI       = "ai"
	PathRules    = "rules"
	PathFallback = "fallback"
)

// AnalysisMetrics is the set of series the connectivity service exports.
type AnalysisMetrics struct {
	reg       *Registry
	duration  *Histogram
	llmErrors *Counter
	inflight  *Gauge
	breaker   *Gauge
}

// NewAnalysisMetrics registers the analysis series on reg.
func NewAnalysisMetrics(reg *Registry) *AnalysisMetrics {
	return &AnalysisMetrics{
		reg:       reg,
		duration:  reg.Histogram("pcbench_analysis_duration_seconds", "Time to produce a verdict", nil),
		llmErrors: reg.Counter("pcbench_llm_errors_total", "Failed model calls"),
		inflight:  reg.Gauge("pcbench_llm_inflight", "Model calls in progress"),
		breaker:   reg.Gauge("pcbench_llm_breaker_state", "Model breaker state (0 closed, 1 open, 2 half-open)"),
	}
}

// Analysis counts one verdict produced on path.
func (m *AnalysisMetrics) Analysis(path string, start time.Time) {
	m.reg.Counter(WithLabels("pcbench_analyses_total", "path", path), "Verdicts produced by path").Inc()
	m.duration.Since(start)
}

// Fallback counts one degradation to the rule engine.
func (m *AnalysisMetrics) Fallback(reason string) {
	m.reg.Counter(WithLabels("pcbench_fallbacks_total", "reason", reason), "Rule-engine fallbacks by reason").Inc()
}

// LLMError counts one failed model call.
func (m *AnalysisMetrics) LLMError() { m.llmErrors.Inc() }

// LLMStarted and LLMDone bracket a model call.
func (m *AnalysisMetrics) LLMStarted() { m.inflight.Inc() }
func (m *AnalysisMetrics) LLMDone()    { m.inflight.Dec() }

// BreakerState records the breaker state as its ordinal.
func (m *AnalysisMetrics) BreakerState(state int) { m.breaker.Set(int64(state)) }
