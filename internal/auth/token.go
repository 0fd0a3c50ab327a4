package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "sigepic"

// Default token lifetimes mirror the original deployment: access tokens live a
// week, refresh tokens a month.
const (
	DefaultAccessTTL  = 7 * 24 * time.Hour
	DefaultRefreshTTL = 30 * 24 * time.Hour
)

// Claims is the identity payload embedded in every token.
type Claims struct {
	Username string `json:"username"`
	Role     Role   `json:"rol"`
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *Claims) AccountID() string { return c.Subject }

// TokenService issues and verifies signed HS256 bearer tokens. Access and
// refresh tokens use separate secrets, so one kind never verifies as the
// other. Verification is pure computation; session revocation is a separate
// check owned by the caller.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithTokenClock overrides the time source used for issuance and expiry
// checks. Test use.
func WithTokenClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService constructs a TokenService. Both secrets are required and
// must differ so refresh tokens cannot stand in for access tokens.
func NewTokenService(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: token secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     DefaultAccessTTL,
		refreshTTL:    DefaultRefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccess signs an access token for the account.
func (s *TokenService) IssueAccess(acct *Account) (string, time.Time, error) {
	return s.issue(acct, s.accessSecret, s.accessTTL)
}

// IssueRefresh signs a refresh token for the account.
func (s *TokenService) IssueRefresh(acct *Account) (string, time.Time, error) {
	return s.issue(acct, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) issue(acct *Account, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Username: acct.Username,
		Role:     acct.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   acct.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifyAccess validates an access token and returns its claims. Returns
// ErrExpiredToken for a correctly signed token past expiry and ErrInvalidToken
// for everything else.
func (s *TokenService) VerifyAccess(token string) (*Claims, error) {
	return s.verify(token, s.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its claims.
func (s *TokenService) VerifyRefresh(token string) (*Claims, error) {
	return s.verify(token, s.refreshSecret)
}

func (s *TokenService) verify(token string, secret []byte) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
