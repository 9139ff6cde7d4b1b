package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuditRecorder accepts audit events without blocking the caller.
type AuditRecorder interface {
	Record(event domain.AuditEvent)
}

// AuditSink persists audit events.
type AuditSink interface {
	Write(ctx context.Context, event domain.AuditEvent) error
}
