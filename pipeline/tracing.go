package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/mrsingh-rishi/meeting-report/pipeline"

// Stage names used in logs and span names.
const (
	StageStore      = "store"
	StageTranscribe = "transcribe"
	StageAnalyze    = "analyze"
	StageAssemble   = "assemble"
	StageCleanup    = "cleanup"
	StageGenerate   = "generate"
	StageRender     = "render"
)

const (
	attrRequestID  = "request.id"
	attrStage      = "pipeline.stage"
	attrKind       = "analysis.kind"
	attrDurationMs = "duration_ms"
)

type stageSpan struct {
	span  trace.Span
	start time.Time
}

func startStage(ctx context.Context, requestID, stage string, attrs ...attribute.KeyValue) (context.Context, *stageSpan) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline."+stage)
	span.SetAttributes(attribute.String(attrRequestID, requestID), attribute.String(attrStage, stage))
	span.SetAttributes(attrs...)
	return ctx, &stageSpan{span: span, start: time.Now()}
}

func (s *stageSpan) end(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.SetAttributes(attribute.Int64(attrDurationMs, time.Since(s.start).Milliseconds()))
	s.span.End()
}
