package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sigepic.org/internal/ids"
)

// ErrSelfDelete rejects an administrator removing their own account.
var ErrSelfDelete = errors.New("no puede eliminar su propio usuario")

// NewAccountInput carries the fields for account creation. The plaintext
// password is hashed here and never stored.
type NewAccountInput struct {
	Username string
	Password string
	FullName string
	Email    string
	Role     Role
	Active   bool
}

// CreateAccount provisions an account. New accounts must change their password
// on first login.
func (s *Service) CreateAccount(ctx context.Context, in NewAccountInput) (AccountSummary, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return AccountSummary{}, errors.New("username is required")
	}
	if !in.Role.Valid() {
		return AccountSummary{}, fmt.Errorf("rol no válido: %q", in.Role)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AccountSummary{}, err
	}
	now := s.now().UTC()
	acct := &Account{
		ID:                 ids.New(),
		Username:           in.Username,
		PasswordHash:       hash,
		FullName:           strings.TrimSpace(in.FullName),
		Email:              strings.TrimSpace(in.Email),
		Role:               in.Role,
		Active:             in.Active,
		MustChangePassword: true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Accounts(ctx).Create(ctx, acct); err != nil {
		return AccountSummary{}, err
	}
	return acct.Summary(), nil
}

// ListAccounts pages through accounts, optionally filtered by active flag and
// role.
func (s *Service) ListAccounts(ctx context.Context, filter AccountFilter) ([]AccountSummary, int, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, 0, fmt.Errorf("rol no válido: %q", filter.Role)
	}
	accounts, total, err := s.store.Accounts(ctx).List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]AccountSummary, len(accounts))
	for i, acct := range accounts {
		out[i] = acct.Summary()
	}
	return out, total, nil
}

// UpdateAccountInput carries the optional administrative updates; a non-nil
// Password is hashed before storage. Re-activating an account also clears its
// lockout state, which is how an administrator unlocks a locked-out user.
type UpdateAccountInput struct {
	FullName *string
	Email    *string
	Role     *Role
	Active   *bool
	Password *string
}

// UpdateAccount applies the given updates and returns the refreshed summary.
func (s *Service) UpdateAccount(ctx context.Context, id string, in UpdateAccountInput) (AccountSummary, error) {
	if in.Role != nil && !in.Role.Valid() {
		return AccountSummary{}, fmt.Errorf("rol no válido: %q", *in.Role)
	}
	upd := AccountUpdate{
		FullName: in.FullName,
		Email:    in.Email,
		Role:     in.Role,
		Active:   in.Active,
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return AccountSummary{}, err
		}
		upd.PasswordHash = &hash
	}
	acct, err := s.store.Accounts(ctx).Update(ctx, id, upd)
	if err != nil {
		return AccountSummary{}, err
	}
	if in.Active != nil && *in.Active && (acct.FailedAttempts > 0 || acct.LockedUntil != nil) {
		state := LoginState{FailedAttempts: 0, LockedUntil: nil, LastLoginAt: acct.LastLoginAt}
		if err := s.store.Accounts(ctx).UpdateLoginState(ctx, acct.ID, state); err != nil {
			return AccountSummary{}, err
		}
		acct.FailedAttempts = 0
		acct.LockedUntil = nil
	}
	return acct.Summary(), nil
}

// DeleteAccount removes an account. The actor cannot remove themselves.
func (s *Service) DeleteAccount(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return ErrSelfDelete
	}
	return s.store.Accounts(ctx).Delete(ctx, id)
}

// AuditTrail pages through the audit log.
func (s *Service) AuditTrail(ctx context.Context, filter AuditFilter) ([]*AuditEntry, int, error) {
	return s.store.Audit(ctx).List(ctx, filter)
}
