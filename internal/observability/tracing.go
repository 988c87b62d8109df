// Package observability wires OpenTelemetry tracing through the chat
// runtime: one span per HTTP request, one per provider completion call,
// and one per skill execution, all exported via OTLP/gRPC when a
// collector endpoint is configured. Grounded on the teacher's
// internal/observability/tracing.go, trimmed to the spans this runtime's
// request/provider/skill call sites actually need (the messaging-channel
// and cross-process-propagation helpers the teacher carries have no
// analogue here: every span in this process starts and ends within a
// single HTTP request or chat turn).
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// TraceConfig controls how a Tracer exports spans. An empty Endpoint
// disables export entirely: NewTracer still returns a working Tracer (so
// call sites never need a nil check on the Tracer itself), but its spans
// are never sampled.
type TraceConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	SamplingRate   float64
	Attributes     map[string]string
	EnableInsecure bool
}

// Tracer wraps a trace.Tracer with the span-lifecycle helpers this
// runtime's call sites use.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TraceConfig
}

// NewTracer builds a Tracer from config and a shutdown func that flushes
// and stops any exporter it started. When config.Endpoint is empty, or
// when the exporter/resource cannot be built, NewTracer falls back to a
// no-op tracer rather than failing startup over a tracing misconfiguration.
func NewTracer(config TraceConfig) (*Tracer, func(context.Context) error) {
	if config.ServiceName == "" {
		config.ServiceName = "assistant"
	}
	if config.SamplingRate == 0 {
		config.SamplingRate = 1.0
	}

	noop := func() (*Tracer, func(context.Context) error) {
		return &Tracer{tracer: otel.Tracer(config.ServiceName), config: config},
			func(context.Context) error { return nil }
	}

	if config.Endpoint == "" {
		return noop()
	}

	ctx := context.Background()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(config.Endpoint)}
	if config.EnableInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
	if err != nil {
		return noop()
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
	}
	if config.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(config.Environment))
	}
	for k, v := range config.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		res = resource.Default()
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case config.SamplingRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	otel.SetTracerProvider(provider)

	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(config.ServiceName),
		config:   config,
	}, func(ctx context.Context) error {
		return provider.Shutdown(ctx)
	}
}

// SpanOptions configures an individual span beyond its name.
type SpanOptions struct {
	Kind       trace.SpanKind
	Attributes []attribute.KeyValue
}

// Start begins a span named name as a child of ctx's span, if any.
func (t *Tracer) Start(ctx context.Context, name string, opts ...SpanOptions) (context.Context, trace.Span) {
	var startOpts []trace.SpanStartOption
	for _, o := range opts {
		if o.Kind != trace.SpanKindUnspecified {
			startOpts = append(startOpts, trace.WithSpanKind(o.Kind))
		}
		if len(o.Attributes) > 0 {
			startOpts = append(startOpts, trace.WithAttributes(o.Attributes...))
		}
	}
	return t.tracer.Start(ctx, name, startOpts...)
}

// RecordError marks span as failed and attaches err, unless err is nil.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// SetAttributes attaches the given key/value pairs (keyvals must come in
// string-key, value pairs) to span.
func SetAttributes(span trace.Span, keyvals ...any) {
	span.SetAttributes(attributesFromPairs(keyvals)...)
}

// AddEvent records a named point-in-time event on span.
func AddEvent(span trace.Span, name string, keyvals ...any) {
	span.AddEvent(name, trace.WithAttributes(attributesFromPairs(keyvals)...))
}

func attributesFromPairs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, attributeFromValue(key, keyvals[i+1]))
	}
	return attrs
}

func attributeFromValue(key string, val any) attribute.KeyValue {
	switch v := val.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// TraceHTTPRequest starts a server-kind span for an inbound API request.
func (t *Tracer) TraceHTTPRequest(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return t.Start(ctx, fmt.Sprintf("http.%s %s", method, path), SpanOptions{
		Kind: trace.SpanKindServer,
		Attributes: []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		},
	})
}

// TraceProviderCompletion starts a client-kind span around a single LLM
// provider's Complete call.
func (t *Tracer) TraceProviderCompletion(ctx context.Context, provider, model string) (context.Context, trace.Span) {
	return t.Start(ctx, "llm."+provider, SpanOptions{
		Kind: trace.SpanKindClient,
		Attributes: []attribute.KeyValue{
			attribute.String("llm.provider", provider),
			attribute.String("llm.model", model),
		},
	})
}

// TraceSkillExecution starts an internal-kind span around a single skill
// invocation.
func (t *Tracer) TraceSkillExecution(ctx context.Context, skillName string) (context.Context, trace.Span) {
	return t.Start(ctx, "skill."+skillName, SpanOptions{
		Kind:       trace.SpanKindInternal,
		Attributes: []attribute.KeyValue{attribute.String("skill.name", skillName)},
	})
}

// GetTraceID returns ctx's active trace id, or "" if ctx carries no valid
// span context. Useful for correlating a log line with its trace.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns ctx's active span id, or "" if ctx carries no valid
// span context.
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.SpanID().String()
}
