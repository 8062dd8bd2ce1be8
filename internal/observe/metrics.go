// Package observe carries the service's telemetry: OpenTelemetry metrics and
// traces, trace-aware slog loggers, and the gin middleware recording HTTP
// latency.
//
// Instruments live on [Metrics]. Production code shares [DefaultMetrics],
// which binds to the global meter provider that [InitProvider] bridges to
// Prometheus. Tests build their own with [NewMetrics] over a ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrWong99/aurasync"

// Values of the source attribute of [Metrics.DiagramOutcomes].
const (
	DiagramSourceModel    = "model"
	DiagramSourceFallback = "fallback"
	DiagramSourceNone     = "none"
	DiagramSourceDisabled = "disabled"
)

// Metrics bundles every instrument. Attribute keys are noted per field.
type Metrics struct {
	LLMDuration      metric.Float64Histogram // component
	LLMTokens        metric.Int64Counter     // component, kind=prompt|completion
	ProviderRequests metric.Int64Counter     // component, status
	ProviderErrors   metric.Int64Counter     // component, kind
	GatewayRetries   metric.Int64Counter     // component

	NormalizeRepairs metric.Int64Counter // rule
	DiagramOutcomes  metric.Int64Counter // source

	CircuitTransitions  metric.Int64Counter     // provider, to
	HTTPRequestDuration metric.Float64Histogram // method, route, status
}

// Hosted model calls routinely take several seconds.
var latencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	out := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&out.LLMTokens, "aurasync.llm.tokens", "Tokens reported by providers, by component and kind.", "{token}"},
		{&out.ProviderRequests, "aurasync.provider.requests", "Provider requests by component and status.", ""},
		{&out.ProviderErrors, "aurasync.provider.errors", "Provider errors by component and kind.", ""},
		{&out.GatewayRetries, "aurasync.gateway.retries", "Retries after transient provider failures.", ""},
		{&out.NormalizeRepairs, "aurasync.normalize.repairs", "Normalizer repairs by rule.", ""},
		{&out.DiagramOutcomes, "aurasync.diagram.outcomes", "Diagram payloads by source.", ""},
		{&out.CircuitTransitions, "aurasync.circuit.transitions", "Circuit breaker state changes by provider and target state.", ""},
	}
	for _, c := range counters {
		opts := []metric.Int64CounterOption{metric.WithDescription(c.desc)}
		if c.unit != "" {
			opts = append(opts, metric.WithUnit(c.unit))
		}
		var err error
		if *c.dst, err = meter.Int64Counter(c.name, opts...); err != nil {
			return nil, err
		}
	}

	var err error
	if out.LLMDuration, err = meter.Float64Histogram("aurasync.llm.duration",
		metric.WithDescription("Latency of one provider call by component."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if out.HTTPRequestDuration, err = meter.Float64Histogram("aurasync.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	return out, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics lazily creates the shared instance on the global meter
// provider. It panics if an instrument cannot be created.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: default metrics: " + err.Error())
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

func attrs(kv ...string) metric.MeasurementOption {
	set := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		set = append(set, attribute.String(kv[i], kv[i+1]))
	}
	return metric.WithAttributes(set...)
}

func (m *Metrics) RecordLLMDuration(ctx context.Context, component string, seconds float64) {
	m.LLMDuration.Record(ctx, seconds, attrs("component", component))
}

// RecordTokens adds the prompt and completion token counts of one call.
// Zero counts are skipped; not every backend reports usage.
func (m *Metrics) RecordTokens(ctx context.Context, component string, prompt, completion int) {
	if prompt > 0 {
		m.LLMTokens.Add(ctx, int64(prompt), attrs("component", component, "kind", "prompt"))
	}
	if completion > 0 {
		m.LLMTokens.Add(ctx, int64(completion), attrs("component", component, "kind", "completion"))
	}
}

func (m *Metrics) RecordProviderRequest(ctx context.Context, component, status string) {
	m.ProviderRequests.Add(ctx, 1, attrs("component", component, "status", status))
}

func (m *Metrics) RecordProviderError(ctx context.Context, component, kind string) {
	m.ProviderErrors.Add(ctx, 1, attrs("component", component, "kind", kind))
}

func (m *Metrics) RecordRetry(ctx context.Context, component string) {
	m.GatewayRetries.Add(ctx, 1, attrs("component", component))
}

func (m *Metrics) RecordRepair(ctx context.Context, rule string) {
	m.NormalizeRepairs.Add(ctx, 1, attrs("rule", rule))
}

// RecordDiagramOutcome counts one diagram payload; source is a DiagramSource
// constant.
func (m *Metrics) RecordDiagramOutcome(ctx context.Context, source string) {
	m.DiagramOutcomes.Add(ctx, 1, attrs("source", source))
}

func (m *Metrics) RecordCircuitTransition(ctx context.Context, provider, to string) {
	m.CircuitTransitions.Add(ctx, 1, attrs("provider", provider, "to", to))
}
