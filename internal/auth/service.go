package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"sigepic.org/internal/ids"
)

const bearerPrefix = "Bearer "

// Throttling defaults, overridable through options.
const (
	DefaultMaxAttempts   = 3
	DefaultLockoutWindow = 30 * time.Minute
)

// Recorder receives one audit event per authentication attempt plus logout
// and password-change events. Implementations must be best-effort: recording
// failures must not fail the attempt itself.
type Recorder interface {
	Record(ctx context.Context, event AuditEvent)
}

// Service is the auth gateway: it orchestrates the credential store, hasher,
// token service, session registry and audit recorder. All configuration is
// injected; the throttling logic performs no ambient reads.
type Service struct {
	store    Store
	hasher   *Hasher
	tokens   *TokenService
	recorder Recorder

	maxAttempts   int
	lockoutWindow time.Duration
	now           func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithMaxAttempts sets the failed-attempt count that triggers a lockout.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithLockoutWindow sets how long an account stays locked.
func WithLockoutWindow(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.lockoutWindow = d
		}
	}
}

// WithHasher overrides the password hasher (e.g. to lower the cost in tests).
func WithHasher(h *Hasher) ServiceOption {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithRecorder sets the audit collaborator.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the time source (useful for lockout-expiry tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth gateway.
func NewService(store Store, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	s := &Service{
		store:         store,
		hasher:        NewHasher(DefaultHashCost),
		tokens:        tokens,
		maxAttempts:   DefaultMaxAttempts,
		lockoutWindow: DefaultLockoutWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Login authenticates username/password, driving the per-account throttling
// machine, and on success issues tokens and records a session. Exactly one
// audit event is emitted per attempt. Unknown usernames and wrong passwords
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string, client ClientInfo) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		s.record(ctx, EventLoginFailure, "", username, client, "credenciales incompletas")
		return nil, ErrInvalidCredentials
	}

	acct, err := s.store.Accounts(ctx).FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.record(ctx, EventLoginFailure, "", username, client, "usuario desconocido")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	now := s.now().UTC()

	// A live lockout rejects before the password is even looked at and
	// without touching the counter.
	if acct.LockedUntil != nil && now.Before(*acct.LockedUntil) {
		s.record(ctx, EventLoginFailure, acct.ID, username, client, "cuenta bloqueada")
		return nil, &AccountLockedError{LockedUntil: *acct.LockedUntil}
	}

	if !acct.Active {
		s.record(ctx, EventLoginFailure, acct.ID, username, client, "cuenta inactiva")
		return nil, ErrAccountInactive
	}

	if !s.hasher.Verify(password, acct.PasswordHash) {
		attempts := acct.FailedAttempts + 1
		state := LoginState{FailedAttempts: attempts, LockedUntil: acct.LockedUntil}
		if attempts >= s.maxAttempts {
			until := now.Add(s.lockoutWindow)
			state.LockedUntil = &until
		}
		state.LastLoginAt = acct.LastLoginAt
		if err := s.store.Accounts(ctx).UpdateLoginState(ctx, acct.ID, state); err != nil {
			return nil, err
		}
		s.record(ctx, EventLoginFailure, acct.ID, username, client, "contraseña incorrecta")
		// The lockout is never revealed on the attempt that triggers it.
		return nil, ErrInvalidCredentials
	}

	state := LoginState{FailedAttempts: 0, LockedUntil: nil, LastLoginAt: &now}
	if err := s.store.Accounts(ctx).UpdateLoginState(ctx, acct.ID, state); err != nil {
		return nil, err
	}
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	acct.LastLoginAt = &now

	accessToken, expiresAt, err := s.tokens.IssueAccess(acct)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.tokens.IssueRefresh(acct)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:        ids.New(),
		AccountID: acct.ID,
		Token:     accessToken,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return nil, err
	}

	s.record(ctx, EventLoginSuccess, acct.ID, username, client, "")

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		Account:      acct.Summary(),
	}, nil
}

// Logout revokes every live session holding token. Idempotent: unknown or
// already revoked tokens are a no-op.
func (s *Service) Logout(ctx context.Context, token string, client ClientInfo) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.store.Sessions(ctx).RevokeByToken(ctx, token); err != nil {
		return err
	}
	accountID, username := "", ""
	if claims, err := s.tokens.VerifyAccess(token); err == nil {
		accountID, username = claims.AccountID(), claims.Username
	}
	s.record(ctx, EventLogout, accountID, username, client, "")
	return nil
}

// ChangePassword re-hashes and stores newPassword after verifying oldPassword.
// Existing tokens and sessions stay valid; revocation-on-change is a
// deliberate non-feature.
func (s *Service) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	acct, err := s.store.Accounts(ctx).FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPassword, acct.PasswordHash) {
		return ErrInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.Accounts(ctx).UpdatePasswordHash(ctx, acct.ID, hash, false); err != nil {
		return err
	}
	s.record(ctx, EventPasswordChange, acct.ID, acct.Username, ClientInfo{}, "")
	return nil
}

// Authenticate extracts and verifies the token from an Authorization header
// value. ErrMissingToken, ErrInvalidToken and ErrExpiredToken are distinct so
// the HTTP layer can tell tampering from an ordinary expiry.
func (s *Service) Authenticate(ctx context.Context, bearerHeader string) (*Claims, error) {
	if !strings.HasPrefix(bearerHeader, bearerPrefix) {
		return nil, ErrMissingToken
	}
	token := strings.TrimSpace(bearerHeader[len(bearerPrefix):])
	if token == "" {
		return nil, ErrMissingToken
	}
	return s.tokens.VerifyAccess(token)
}

// Authorize checks the permission table for the claims' role.
func (s *Service) Authorize(claims *Claims, resource Resource, action Action) error {
	if claims == nil {
		return ErrForbidden
	}
	if !Can(claims.Role, resource, action) {
		return ErrForbidden
	}
	return nil
}

// Refresh exchanges a valid refresh token for a fresh token pair and session.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*LoginResult, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	acct, err := s.store.Accounts(ctx).FindByID(ctx, claims.AccountID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !acct.Active {
		return nil, ErrAccountInactive
	}

	accessToken, expiresAt, err := s.tokens.IssueAccess(acct)
	if err != nil {
		return nil, err
	}
	newRefresh, _, err := s.tokens.IssueRefresh(acct)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        ids.New(),
		AccountID: acct.ID,
		Token:     accessToken,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		ExpiresAt: expiresAt,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Sessions(ctx).Create(ctx, sess); err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    expiresAt,
		Account:      acct.Summary(),
	}, nil
}

// Profile returns the response-safe view of an account.
func (s *Service) Profile(ctx context.Context, accountID string) (AccountSummary, error) {
	acct, err := s.store.Accounts(ctx).FindByID(ctx, accountID)
	if err != nil {
		return AccountSummary{}, err
	}
	return acct.Summary(), nil
}

func (s *Service) record(ctx context.Context, eventType, accountID, username string, client ClientInfo, detail string) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, AuditEvent{
		Type:      eventType,
		AccountID: accountID,
		Username:  username,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Detail:    detail,
		Timestamp: s.now().UTC(),
	})
}
