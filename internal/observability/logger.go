package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// RecordLogger returns a child logger with audit-record context fields.
func RecordLogger(base *zap.Logger, recordID, subjectID, eventType string) *zap.Logger {
	return base.With(
		zap.String("record_id", recordID),
		zap.String("subject_id", subjectID),
		zap.String("event_type", eventType),
	)
}
