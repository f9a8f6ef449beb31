package core

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dosco/graphjin/neo4j"

// Tracer starts spans around compile requests
type Tracer interface {
	Start(c context.Context, name string) (context.Context, Spaner)
}

// Spaner is the span handed out by a Tracer
type Spaner interface {
	SetAttributesString(attrs ...StringAttr)
	IsRecording() bool
	Error(err error)
	End()
}

type StringAttr struct {
	Name  string
	Value string
}

// otelTracer is the default tracer, it uses the globally registered
// OpenTelemetry provider which is a no-op until the host application
// configures one
type otelTracer struct {
	tr trace.Tracer
}

type otelSpan struct {
	span trace.Span
}

func newTracer() Tracer {
	return &otelTracer{tr: otel.Tracer(tracerName)}
}

func (t *otelTracer) Start(c context.Context, name string) (context.Context, Spaner) {
	c, span := t.tr.Start(c, name)
	return c, &otelSpan{span: span}
}

func (s *otelSpan) SetAttributesString(attrs ...StringAttr) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for _, a := range attrs {
		kv = append(kv, attribute.String(a.Name, a.Value))
	}
	s.span.SetAttributes(kv...)
}

func (s *otelSpan) IsRecording() bool {
	return s.span.IsRecording()
}

func (s *otelSpan) Error(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) End() {
	s.span.End()
}
