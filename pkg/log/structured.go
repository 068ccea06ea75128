package log

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kubev2v/stack-migration/pkg/requestid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StructuredLogger traces operations of a component: one line when an operation
// starts, one per step and one when it ends.
type StructuredLogger struct {
	name   string
	level  zapcore.Level
	fields []zap.Field
}

// NewDebugLogger returns a logger whose successful traces are logged at debug level.
func NewDebugLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.DebugLevel}
}

// NewInfoLogger returns a logger whose successful traces are logged at info level.
func NewInfoLogger(name string) *StructuredLogger {
	return &StructuredLogger{name: name, level: zapcore.InfoLevel}
}

// WithContext attaches the request id carried by ctx, if any.
func (l *StructuredLogger) WithContext(ctx context.Context) *StructuredLogger {
	id := requestid.FromContext(ctx)
	if id == "" {
		return l
	}
	return &StructuredLogger{
		name:   l.name,
		level:  l.level,
		fields: append(append([]zap.Field{}, l.fields...), zap.String("request_id", id)),
	}
}

func (l *StructuredLogger) Operation(name string) *OperationBuilder {
	return &OperationBuilder{
		logger: l,
		name:   name,
		fields: append([]zap.Field{zap.String("operation", name)}, l.fields...),
	}
}

type OperationBuilder struct {
	logger *StructuredLogger
	name   string
	fields []zap.Field
}

func (b *OperationBuilder) WithString(key, value string) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value))
	return b
}

func (b *OperationBuilder) WithInt(key string, value int) *OperationBuilder {
	b.fields = append(b.fields, zap.Int(key, value))
	return b
}

func (b *OperationBuilder) WithInt64(key string, value int64) *OperationBuilder {
	b.fields = append(b.fields, zap.Int64(key, value))
	return b
}

func (b *OperationBuilder) WithBool(key string, value bool) *OperationBuilder {
	b.fields = append(b.fields, zap.Bool(key, value))
	return b
}

func (b *OperationBuilder) WithUUID(key string, value uuid.UUID) *OperationBuilder {
	b.fields = append(b.fields, zap.String(key, value.String()))
	return b
}

func (b *OperationBuilder) WithParam(key string, value any) *OperationBuilder {
	b.fields = append(b.fields, zap.Any(key, value))
	return b
}

// Build logs the start of the operation and returns its tracer.
func (b *OperationBuilder) Build() *OperationTracer {
	t := &OperationTracer{
		logger: b.logger,
		name:   b.name,
		fields: b.fields,
		start:  time.Now(),
	}
	t.entry(b.logger.level, "operation started").Log()
	return t
}

type OperationTracer struct {
	logger *StructuredLogger
	name   string
	fields []zap.Field
	start  time.Time
}

func (t *OperationTracer) Step(name string) *LogEntry {
	return t.entry(t.logger.level, fmt.Sprintf("%s: %s", t.name, name)).WithString("step", name)
}

func (t *OperationTracer) Success() *LogEntry {
	return t.entry(t.logger.level, "operation succeeded").WithDuration("duration", time.Since(t.start))
}

func (t *OperationTracer) Error(err error) *LogEntry {
	return t.entry(zapcore.ErrorLevel, "operation failed").
		WithDuration("duration", time.Since(t.start)).
		with(zap.Error(err))
}

// Elapsed returns the time spent since the operation started.
func (t *OperationTracer) Elapsed() time.Duration {
	return time.Since(t.start)
}

func (t *OperationTracer) entry(level zapcore.Level, msg string) *LogEntry {
	return &LogEntry{
		name:   t.logger.name,
		level:  level,
		msg:    msg,
		fields: append([]zap.Field{}, t.fields...),
	}
}

type LogEntry struct {
	name   string
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (e *LogEntry) with(f zap.Field) *LogEntry {
	e.fields = append(e.fields, f)
	return e
}

func (e *LogEntry) WithString(key, value string) *LogEntry {
	return e.with(zap.String(key, value))
}

func (e *LogEntry) WithInt(key string, value int) *LogEntry {
	return e.with(zap.Int(key, value))
}

func (e *LogEntry) WithInt64(key string, value int64) *LogEntry {
	return e.with(zap.Int64(key, value))
}

func (e *LogEntry) WithBool(key string, value bool) *LogEntry {
	return e.with(zap.Bool(key, value))
}

func (e *LogEntry) WithUUID(key string, value uuid.UUID) *LogEntry {
	return e.with(zap.String(key, value.String()))
}

func (e *LogEntry) WithDuration(key string, value time.Duration) *LogEntry {
	return e.with(zap.Duration(key, value))
}

func (e *LogEntry) WithParam(key string, value any) *LogEntry {
	return e.with(zap.Any(key, value))
}

func (e *LogEntry) Log() {
	logger := zap.L().Named(e.name)
	if ce := logger.Check(e.level, e.msg); ce != nil {
		ce.Write(e.fields...)
	}
}
