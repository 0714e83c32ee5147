package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records the three measured concerns of a run: agent invocations,
// tool executions and LLM requests.
type Metrics interface {
	RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

type agentInstruments struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	tokens   metric.Int64Counter
}

type toolInstruments struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
	errors   metric.Int64Counter
}

type llmInstruments struct {
	duration     metric.Float64Histogram
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	errors       metric.Int64Counter
}

// PrometheusMetrics implements Metrics on OTel instruments exported through
// the prometheus bridge. The zero value is a disabled no-op recorder, so
// instrumented code paths never need to check whether metrics are on.
type PrometheusMetrics struct {
	enabled bool

	agent agentInstruments
	tool  toolInstruments
	llm   llmInstruments
}

func (m *PrometheusMetrics) RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error) {
	if m == nil || !m.enabled {
		return
	}

	m.agent.duration.Record(ctx, duration.Seconds())
	m.agent.calls.Add(ctx, 1)
	if tokens > 0 {
		m.agent.tokens.Add(ctx, int64(tokens))
	}
	if err != nil {
		m.agent.errors.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || !m.enabled {
		return
	}

	byTool := metric.WithAttributes(attribute.String("tool", tool))
	m.tool.duration.Record(ctx, duration.Seconds(), byTool)
	m.tool.calls.Add(ctx, 1, byTool)
	if err != nil {
		m.tool.errors.Add(ctx, 1, byTool)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || !m.enabled {
		return
	}

	byModel := metric.WithAttributes(attribute.String("model", model))
	m.llm.duration.Record(ctx, duration.Seconds(), byModel)
	m.llm.inputTokens.Add(ctx, int64(inputTokens), byModel)
	m.llm.outputTokens.Add(ctx, int64(outputTokens), byModel)
	if err != nil {
		m.llm.errors.Add(ctx, 1, byModel)
	}
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
