package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// MemoryStore is the in-process fallback used when no DATABASE_URL is set.
// Sessions do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.PersistedSession
	audit    []domain.AuditLog
	maxAudit int
}

// NewMemoryStore creates an empty store keeping at most maxAudit records.
func NewMemoryStore(maxAudit int) *MemoryStore {
	if maxAudit <= 0 {
		maxAudit = 1000
	}
	return &MemoryStore{
		sessions: make(map[string]domain.PersistedSession),
		maxAudit: maxAudit,
	}
}

// LoadSession implements port.SessionPersistence.
func (m *MemoryStore) LoadSession(_ context.Context, key string) (*domain.PersistedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ps, ok := m.sessions[key]
	if !ok || ps.Empty() {
		return nil, port.ErrNoSession
	}
	ps.Cookies = append([]domain.StoredCookie(nil), ps.Cookies...)
	return &ps, nil
}

// SaveSession implements port.SessionPersistence.
func (m *MemoryStore) SaveSession(_ context.Context, ps domain.PersistedSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ps.Cookies = append([]domain.StoredCookie(nil), ps.Cookies...)
	ps.UpdatedAt = time.Now().UTC()
	m.sessions[ps.Key] = ps
	return nil
}

// ClearSession implements port.SessionPersistence.
func (m *MemoryStore) ClearSession(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// WriteAudit implements middleware.AuditWriter.
func (m *MemoryStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, domain.AuditLog{
		ID:         uuid.NewString(),
		UserID:     userID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  time.Now().UTC(),
	})
	if over := len(m.audit) - m.maxAudit; over > 0 {
		m.audit = append([]domain.AuditLog(nil), m.audit[over:]...)
	}
	return nil
}

// ListAuditLogs returns the newest records first.
func (m *MemoryStore) ListAuditLogs(_ context.Context, limit int, action string) ([]domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logs := make([]domain.AuditLog, 0, len(m.audit))
	for i := len(m.audit) - 1; i >= 0; i-- {
		if l := m.audit[i]; action == "" || l.Action == action {
			logs = append(logs, l)
		}
	}
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

var (
	_ port.SessionPersistence = (*MemoryStore)(nil)
	_ port.AuditStore         = (*MemoryStore)(nil)
	_ port.SessionPersistence = (*PostgresStore)(nil)
	_ port.AuditStore         = (*PostgresStore)(nil)
)
