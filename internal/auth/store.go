package auth

import (
	"context"
	"time"
)

// Store aggregates the persistence collaborators of the auth subsystem.
type Store interface {
	Accounts(ctx context.Context) CredentialStore
	Sessions(ctx context.Context) SessionStore
	Audit(ctx context.Context) AuditStore
}

// AccountFilter narrows List results.
type AccountFilter struct {
	Active *bool
	Role   Role
	Page   int
	Limit  int
}

// AccountUpdate carries the mutable administrative fields; nil means "leave
// unchanged". Password changes travel pre-hashed.
type AccountUpdate struct {
	FullName     *string
	Email        *string
	Role         *Role
	Active       *bool
	PasswordHash *string
}

// CredentialStore persists accounts and their security state.
type CredentialStore interface {
	Create(ctx context.Context, acct *Account) error
	FindByUsername(ctx context.Context, username string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	List(ctx context.Context, filter AccountFilter) ([]*Account, int, error)
	Update(ctx context.Context, id string, upd AccountUpdate) (*Account, error)
	Delete(ctx context.Context, id string) error
	// UpdateLoginState writes the throttling fields in one statement.
	UpdateLoginState(ctx context.Context, id string, state LoginState) error
	// UpdatePasswordHash stores a new hash and records whether the account
	// must still change its password.
	UpdatePasswordHash(ctx context.Context, id, hash string, mustChange bool) error
}

// SessionStore records issued tokens and their revocation.
type SessionStore interface {
	Create(ctx context.Context, sess *Session) error
	// RevokeByToken marks every live session holding token as revoked. Zero
	// matches is not an error.
	RevokeByToken(ctx context.Context, token string) error
}

// AuditEntry is one persisted audit row. The auth core writes authentication
// events into the same trail the rest of the application reads.
type AuditEntry struct {
	ID        string         `json:"id"`
	AccountID string         `json:"usuarioId,omitempty"`
	Username  string         `json:"username,omitempty"`
	Action    string         `json:"accion"`
	Table     string         `json:"tabla"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"userAgent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// AuditFilter narrows audit queries.
type AuditFilter struct {
	Table     string
	AccountID string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

// AuditStore appends immutable entries and serves the auditoría listing.
type AuditStore interface {
	Append(ctx context.Context, entry *AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*AuditEntry, int, error)
}
