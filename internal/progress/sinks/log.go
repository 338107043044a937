// Package sinks contains progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/ddoubleg123/carrot-discovery/internal/progress"
)

// LogSink emits structured stage logs. Every stage carries phase, outcome,
// duration, and error code so a run can be reconstructed from logs alone.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("content_id", evt.ContentID),
			zap.String("trace_id", evt.TraceID),
			zap.String("phase", string(evt.Phase)),
			zap.Bool("ok", evt.OK),
			zap.Int64("duration_ms", evt.Dur.Milliseconds()),
		}
		if evt.ErrorCode != "" {
			fields = append(fields, zap.String("error_code", string(evt.ErrorCode)))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		s.logger.Info("enrich stage", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
