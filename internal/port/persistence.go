package port

import (
	"context"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

// SessionCarrier is the part of the gateway that holds the session
// credential in transit (the cookie jar).
type SessionCarrier interface {
	// Snapshot exports the credential for persistence.
	Snapshot() domain.PersistedSession

	// Restore loads a previously persisted credential.
	Restore(s domain.PersistedSession)

	// Reset forgets every credential.
	Reset()
}

// SessionPersistence keeps the session indicator across restarts.
// Load returns ErrNoSession when nothing is stored under key.
type SessionPersistence interface {
	LoadSession(ctx context.Context, key string) (*domain.PersistedSession, error)
	SaveSession(ctx context.Context, s domain.PersistedSession) error
	ClearSession(ctx context.Context, key string) error
}

// AuditStore persists and lists audit records.
type AuditStore interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
	ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error)
}
