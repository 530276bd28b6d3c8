package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// PostgresStore persists the session indicator and the audit log.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
// The lib/pq driver must be registered by the caller.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS client_sessions (
	session_key TEXT PRIMARY KEY,
	cookies     JSONB NOT NULL,
	expires_at  TIMESTAMPTZ,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS auth_audit (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	action      TEXT NOT NULL,
	resource    TEXT NOT NULL,
	resource_id TEXT NOT NULL,
	details     JSONB NOT NULL DEFAULT '{}'::jsonb,
	ip          TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS auth_audit_created_at_idx ON auth_audit (created_at DESC);`

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// --- Sessions ---

// LoadSession implements port.SessionPersistence.
func (s *PostgresStore) LoadSession(ctx context.Context, key string) (*domain.PersistedSession, error) {
	query := `SELECT cookies, expires_at, updated_at FROM client_sessions WHERE session_key = $1`

	var (
		raw       []byte
		expiresAt sql.NullTime
		ps        = domain.PersistedSession{Key: key}
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&raw, &expiresAt, &ps.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := json.Unmarshal(raw, &ps.Cookies); err != nil {
		return nil, fmt.Errorf("decode session cookies: %w", err)
	}
	if expiresAt.Valid {
		ps.ExpiresAt = expiresAt.Time
	}
	if ps.Empty() {
		return nil, port.ErrNoSession
	}
	return &ps, nil
}

// SaveSession implements port.SessionPersistence.
func (s *PostgresStore) SaveSession(ctx context.Context, ps domain.PersistedSession) error {
	raw, err := json.Marshal(ps.Cookies)
	if err != nil {
		return fmt.Errorf("encode session cookies: %w", err)
	}
	var expiresAt sql.NullTime
	if !ps.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: ps.ExpiresAt, Valid: true}
	}

	query := `
		INSERT INTO client_sessions (session_key, cookies, expires_at, updated_at)
		VALUES ($1, $2::jsonb, $3, NOW())
		ON CONFLICT (session_key) DO UPDATE SET
			cookies = EXCLUDED.cookies,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`
	if _, err := s.db.ExecContext(ctx, query, ps.Key, string(raw), expiresAt); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// ClearSession implements port.SessionPersistence.
func (s *PostgresStore) ClearSession(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_sessions WHERE session_key = $1`, key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error {
	if !json.Valid([]byte(details)) {
		wrapped, _ := json.Marshal(map[string]string{"raw": details})
		details = string(wrapped)
	}
	query := `INSERT INTO auth_audit (id, user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8)`
	_, err := s.db.ExecContext(context.Background(), query,
		uuid.NewString(), userID, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// ListAuditLogs implements port.AuditStore. The newest records come first;
// an empty action matches every record and limit <= 0 means no limit.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, limit int, action string) ([]domain.AuditLog, error) {
	query := `
		SELECT id, user_id, action, resource, resource_id, details, ip, user_agent, created_at
		FROM auth_audit
		WHERE $1 = '' OR action = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := s.db.QueryContext(ctx, query, action, lim)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0)
	for rows.Next() {
		l, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}

func scanAuditLog(rows *sql.Rows) (domain.AuditLog, error) {
	var (
		l       domain.AuditLog
		details []byte
	)
	err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
		&details, &l.IP, &l.UserAgent, &l.CreatedAt)
	if err != nil {
		return l, fmt.Errorf("scan audit log: %w", err)
	}
	l.Details = string(details)
	return l, nil
}
