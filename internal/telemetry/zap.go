package telemetry

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink writes events as structured log entries.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) RecordEvent(_ context.Context, e Event) error {
	s.write(e, nil)
	return nil
}

func (s *LogSink) RecordError(_ context.Context, e Event, err error) error {
	s.write(e, err)
	return nil
}

func (s *LogSink) write(e Event, err error) {
	fields := make([]zap.Field, 0, len(e.Fields)+6)
	fields = append(fields, zap.String("event", e.Name))
	if e.Agent != "" {
		fields = append(fields, zap.String("agent", e.Agent))
	}
	if e.Latency > 0 {
		fields = append(fields, zap.Duration("latency", e.Latency))
	}
	if u := e.Usage; u != nil {
		fields = append(fields,
			zap.String("model", u.Model),
			zap.Int("prompt_tokens", u.PromptTokens),
			zap.Int("completion_tokens", u.CompletionTokens),
			zap.Int("total_tokens", u.TotalTokens),
		)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Any(k, e.Fields[k]))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if ce := s.log.Check(zapLevel(e.Level), e.Name); ce != nil {
		ce.Write(fields...)
	}
}

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
