package auth

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers both unknown username and wrong password so
	// a caller cannot tell which accounts exist.
	ErrInvalidCredentials = errors.New("credenciales inválidas")
	// ErrAccountInactive is returned for disabled accounts regardless of
	// whether the password was correct.
	ErrAccountInactive = errors.New("usuario inactivo")
	// ErrAccountLocked is the sentinel matched by errors.Is for lockout
	// rejections; the concrete error is *AccountLockedError.
	ErrAccountLocked = errors.New("usuario bloqueado temporalmente")

	// ErrMissingToken indicates the Authorization header was absent or did not
	// use the Bearer scheme.
	ErrMissingToken = errors.New("token no proporcionado")
	// ErrInvalidToken indicates a malformed token or a bad signature.
	ErrInvalidToken = errors.New("token inválido")
	// ErrExpiredToken indicates a well-formed, correctly signed token past its
	// expiry; callers should prompt a re-login rather than treat it as abuse.
	ErrExpiredToken = errors.New("token expirado")

	// ErrForbidden indicates an authenticated caller whose role does not grant
	// the requested resource/action.
	ErrForbidden = errors.New("no tiene permisos para esta acción")

	// Storage-boundary errors. The Postgres store translates driver errors
	// into these; anything else propagates unchanged.
	ErrNotFound      = errors.New("auth: not found")
	ErrAlreadyExists = errors.New("auth: already exists")
)

// AccountLockedError carries the unlock time so the UI can display it.
type AccountLockedError struct {
	LockedUntil time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("usuario bloqueado temporalmente hasta %s", e.LockedUntil.UTC().Format(time.RFC3339))
}

// Is makes errors.Is(err, ErrAccountLocked) match.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}
