// Package metrics holds the prometheus collectors for the onboarding engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fitcoach"

type Metrics struct {
	registry *prometheus.Registry

	turns            *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	toolCalls        *prometheus.CounterVec
	llmCalls         *prometheus.CounterVec
	llmCost          prometheus.Counter
	stateAdvances    *prometheus.CounterVec
	stepSaves        *prometheus.CounterVec
	materializations *prometheus.CounterVec
}

// New registers every collector on a private registry, plus the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "agent_turns_total",
			Help: "Conversation turns by agent, mode and outcome.",
		}, []string{"agent", "mode", "outcome"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "agent_turn_duration_seconds",
			Help:    "Wall time of a conversation turn.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"agent", "mode"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "agent_tool_calls_total",
			Help: "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_calls_total",
			Help: "Chat model calls by component and outcome.",
		}, []string{"component", "outcome"}),
		llmCost: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_cost_usd_total",
			Help: "Accumulated chat model usage cost in USD.",
		}),
		stateAdvances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "onboarding_state_advances_total",
			Help: "Onboarding state transitions by target state.",
		}, []string{"state"}),
		stepSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "onboarding_step_saves_total",
			Help: "Direct step saves by step and outcome.",
		}, []string{"step", "outcome"}),
		materializations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "profile_materializations_total",
			Help: "Profile materializations by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turns, m.turnDuration, m.toolCalls, m.llmCalls, m.llmCost,
		m.stateAdvances, m.stepSaves, m.materializations,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveTurn(agent, mode string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(agent, mode, outcome(err)).Inc()
	m.turnDuration.WithLabelValues(agent, mode).Observe(time.Since(started).Seconds())
}

func (m *Metrics) ObserveToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

func (m *Metrics) ObserveLLMCall(component string, costUSD float64, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(component, outcome(err)).Inc()
	if costUSD > 0 {
		m.llmCost.Add(costUSD)
	}
}

func (m *Metrics) ObserveStateAdvance(state string) {
	if m == nil {
		return
	}
	m.stateAdvances.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveStepSave(step string, err error) {
	if m == nil {
		return
	}
	m.stepSaves.WithLabelValues(step, outcome(err)).Inc()
}

func (m *Metrics) ObserveMaterialization(err error) {
	if m == nil {
		return
	}
	m.materializations.WithLabelValues(outcome(err)).Inc()
}
