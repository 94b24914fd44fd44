package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type roomCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// Room identifies the conversation a request acts on.
type Room struct {
	RoomID   string
	SenderID string
}

// ContextFields extracts correlation fields from ctx: the trace and span
// IDs, the room and sender, and the request ID.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if r := RoomFromContext(ctx); r != nil {
		if r.RoomID != "" {
			fields = append(fields, zap.String("room.id", r.RoomID))
		}
		if r.SenderID != "" {
			fields = append(fields, zap.String("sender.id", r.SenderID))
		}
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	return fields
}

// WithRoom adds the room and sender to ctx.
func WithRoom(ctx context.Context, roomID, senderID string) context.Context {
	return context.WithValue(ctx, roomCtxKey{}, &Room{RoomID: roomID, SenderID: senderID})
}

// RoomFromContext returns the room stored by WithRoom, or nil.
func RoomFromContext(ctx context.Context) *Room {
	if r, ok := ctx.Value(roomCtxKey{}).(*Room); ok {
		return r
	}
	return nil
}

// WithRequestID adds a request ID to ctx. Empty IDs are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithLogger stores logger in ctx.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
