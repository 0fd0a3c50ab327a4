package auth

import "time"

// Account is a login identity together with its security state. The throttling
// machine is the only writer of FailedAttempts/LockedUntil/LastLoginAt.
type Account struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	PasswordHash       string     `json:"-"`
	FullName           string     `json:"nombreCompleto"`
	Email              string     `json:"email"`
	Role               Role       `json:"rol"`
	Active             bool       `json:"activo"`
	MustChangePassword bool       `json:"cambiarPassword"`
	FailedAttempts     int        `json:"-"`
	LockedUntil        *time.Time `json:"-"`
	LastLoginAt        *time.Time `json:"ultimoAcceso,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"-"`
}

// Summary returns the response-safe view of the account.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:                 a.ID,
		Username:           a.Username,
		FullName:           a.FullName,
		Email:              a.Email,
		Role:               a.Role,
		Active:             a.Active,
		MustChangePassword: a.MustChangePassword,
		LastLoginAt:        a.LastLoginAt,
	}
}

// AccountSummary is the account as exposed to API clients; it never carries
// the password hash or the throttling counters.
type AccountSummary struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	FullName           string     `json:"nombreCompleto"`
	Email              string     `json:"email"`
	Role               Role       `json:"rol"`
	Active             bool       `json:"activo"`
	MustChangePassword bool       `json:"cambiarPassword"`
	LastLoginAt        *time.Time `json:"ultimoAcceso,omitempty"`
}

// Session records one issued access token. Sessions are created at login,
// revoked at logout and otherwise never mutated; several may be live for the
// same account at once.
type Session struct {
	ID        string    `json:"id"`
	AccountID string    `json:"usuarioId"`
	Token     string    `json:"-"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	ExpiresAt time.Time `json:"expiraEn"`
	Revoked   bool      `json:"revocada"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClientInfo is captured at login for the session record and audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// LoginState is the slice of Account mutated by the throttling machine. It is
// written back in a single update per attempt; concurrent failed attempts may
// lose an increment, which bounds attempts from below, never from above.
type LoginState struct {
	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
}

// AuditEvent is one entry handed to the audit collaborator. Exactly one event
// is emitted per authentication attempt.
type AuditEvent struct {
	Type      string    `json:"type"`
	AccountID string    `json:"usuarioId,omitempty"`
	Username  string    `json:"username,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Audit event types.
const (
	EventLoginSuccess   = "login_success"
	EventLoginFailure   = "login_failure"
	EventLogout         = "logout"
	EventPasswordChange = "password_change"
)

// LoginResult is what a successful login or refresh returns.
type LoginResult struct {
	AccessToken  string         `json:"token"`
	RefreshToken string         `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	Account      AccountSummary `json:"user"`
}
