// Package logger configures the process-wide logrus logger and derives
// request-scoped entries from a context.
package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

// New returns a JSON logger at the given level. An unparsable level falls
// back to info and is reported once.
func New(level string, out io.Writer) *logrus.Logger {
	if out == nil {
		out = os.Stdout
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
		l.SetLevel(lvl)
		l.Warnf("invalid LOG_LEVEL %q, using %s", level, lvl)
		return l
	}
	l.SetLevel(lvl)
	return l
}

// WithRequestID stores the request id for FromContext.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// FromContext returns an entry carrying the request id and, when a span is
// recording, the trace and span ids.
func FromContext(ctx context.Context, l logrus.FieldLogger) *logrus.Entry {
	fields := logrus.Fields{}
	if id := RequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}
	return l.WithFields(fields)
}
