package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsHandler serves the Prometheus scrape endpoint backed by the
// default registry the OTel prometheus exporter registers into.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

func InitMetrics(ctx context.Context, cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	b := instrumentBuilder{meter: meterProvider.Meter("claimsight")}
	m := &PrometheusMetrics{
		enabled: true,
		agent: agentInstruments{
			duration: b.histogram("claimsight_agent_call_duration_seconds", "Agent run duration in seconds"),
			calls:    b.counter("claimsight_agent_calls_total", "Total agent runs"),
			errors:   b.counter("claimsight_agent_errors_total", "Total failed agent runs"),
			tokens:   b.counter("claimsight_agent_tokens_used_total", "Total tokens consumed across agent runs"),
		},
		tool: toolInstruments{
			duration: b.histogram("claimsight_tool_execution_duration_seconds", "Tool execution duration in seconds"),
			calls:    b.counter("claimsight_tool_calls_total", "Total tool executions"),
			errors:   b.counter("claimsight_tool_errors_total", "Total failed tool executions"),
		},
		llm: llmInstruments{
			duration:     b.histogram("claimsight_llm_request_duration_seconds", "LLM request duration in seconds"),
			inputTokens:  b.counter("claimsight_llm_tokens_input_total", "Total prompt tokens sent to the LLM"),
			outputTokens: b.counter("claimsight_llm_tokens_output_total", "Total completion tokens returned by the LLM"),
			errors:       b.counter("claimsight_llm_errors_total", "Total failed LLM requests"),
		},
	}
	if b.err != nil {
		return nil, fmt.Errorf("failed to create metrics instruments: %w", b.err)
	}

	return m, nil
}

// instrumentBuilder creates instruments on a meter, keeping the first error
// so the caller checks once after building the whole set.
type instrumentBuilder struct {
	meter metric.Meter
	err   error
}

func (b *instrumentBuilder) histogram(name, description string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(name, metric.WithDescription(description))
	if err != nil && b.err == nil {
		b.err = err
	}
	return h
}

func (b *instrumentBuilder) counter(name, description string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil && b.err == nil {
		b.err = err
	}
	return c
}
