package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sigepic.org/internal/auth"
	"sigepic.org/internal/obs"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.svc.Login(r.Context(), req.Username, req.Password, clientInfo(r))
	if err != nil {
		obs.CountLogin(loginOutcome(err))
		handleAuthError(w, r, err)
		return
	}
	obs.CountLogin("success")

	writeJSON(w, http.StatusOK, res)
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrAccountLocked):
		return "locked"
	case errors.Is(err, auth.ErrAccountInactive):
		return "inactive"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid"
	default:
		return "error"
	}
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	token, _ := auth.TokenFromContext(r.Context())
	if err := a.svc.Logout(r.Context(), token, clientInfo(r)); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "sesión cerrada"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		writeError(w, r, http.StatusBadRequest, auth.ErrMissingToken.Error())
		return
	}

	res, err := a.svc.Refresh(r.Context(), req.RefreshToken, clientInfo(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type changePasswordRequest struct {
	PasswordActual string `json:"passwordActual"`
	PasswordNueva  string `json:"passwordNueva"`
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, auth.ErrMissingToken.Error())
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.PasswordNueva) < 8 {
		writeError(w, r, http.StatusBadRequest, "la nueva contraseña debe tener al menos 8 caracteres")
		return
	}

	if err := a.svc.ChangePassword(r.Context(), claims.AccountID(), req.PasswordActual, req.PasswordNueva); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "contraseña actualizada"})
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, auth.ErrMissingToken.Error())
		return
	}

	profile, err := a.svc.Profile(r.Context(), claims.AccountID())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
