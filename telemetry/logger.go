package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yairfalse/tagvet/faults"
)

// OTELHook adds trace and span IDs to every log entry.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration.
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a component-scoped logger with OTEL hooks.
func NewLogger(component string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("component", component).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context for trace propagation.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogFault logs a failure with its taxonomy kind. Free text passes
// through the redactor first; internal logs may be exported later.
func (l *Logger) LogFault(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Str("operation", operation).
		Str("fault_kind", string(faults.KindOf(err))).
		Str("error", faults.RedactError(err)).
		Msg("operation failed")
}

// LogRejection logs a control-plane rejection (budget, loop, input).
func (l *Logger) LogRejection(ctx context.Context, tool, sessionID string, err error) {
	l.WithContext(ctx).Warn().
		Str("tool", tool).
		Str("session_id", sessionID).
		Str("fault_kind", string(faults.KindOf(err))).
		Str("reason", faults.RedactError(err)).
		Msg("call rejected")
}
