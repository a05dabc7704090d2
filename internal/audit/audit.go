// Package audit provides write-only, fire-and-forget audit event emission.
//
// Storage and rendering of audit records belong to an external collaborator;
// this engine only emits events. Emission never fails a foreground allocation:
// the sink swallows its own errors.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Event captures one allocation-engine decision for the audit trail.
type Event struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Operation string
	Outcome   string
	Detail    map[string]any
	CreatedAt time.Time
}

// Sink emits audit events. Implementations must be safe for concurrent use and
// must never block or fail the caller.
type Sink interface {
	Emit(ctx context.Context, subject uuid.UUID, operation, outcome string, detail map[string]any)
}

// slogSink emits audit events as structured log records.
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a Sink that writes audit events to the given logger.
func NewSlogSink(logger *slog.Logger) Sink {
	return &slogSink{logger: logger}
}

// Emit writes one audit event. The event identifier is a UUIDv7 so downstream
// collectors can order events without trusting wall clocks.
func (s *slogSink) Emit(
	ctx context.Context,
	subject uuid.UUID,
	operation, outcome string,
	detail map[string]any,
) {
	if s.logger == nil {
		return
	}

	event := Event{
		ID:        uuid.Must(uuid.NewV7()),
		Subject:   subject,
		Operation: operation,
		Outcome:   outcome,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}

	s.logger.InfoContext(ctx, "audit event",
		slog.String("audit_id", event.ID.String()),
		slog.String("subject", event.Subject.String()),
		slog.String("operation", event.Operation),
		slog.String("outcome", event.Outcome),
		slog.Any("detail", event.Detail),
	)
}

// NopSink discards all events. Used when no audit collaborator is wired.
type NopSink struct{}

// NewNopSink creates a Sink that discards events.
func NewNopSink() Sink {
	return &NopSink{}
}

// Emit does nothing.
func (n *NopSink) Emit(
	ctx context.Context,
	subject uuid.UUID,
	operation, outcome string,
	detail map[string]any,
) {
}
