package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"sigepic.org/internal/auth"
)

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleAuthError maps the auth sentinels onto HTTP statuses. A locked account
// answers 403 together with the unlock timestamp.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *auth.AccountLockedError
	switch {
	case errors.As(err, &locked):
		writeErrorPayload(w, r, http.StatusForbidden, locked.Error(), map[string]any{
			"bloqueadoHasta": locked.LockedUntil.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrMissingToken):
		writeError(w, r, http.StatusUnauthorized, auth.ErrMissingToken.Error())
	case errors.Is(err, auth.ErrExpiredToken):
		writeError(w, r, http.StatusUnauthorized, auth.ErrExpiredToken.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, auth.ErrForbidden.Error())
	case errors.Is(err, auth.ErrSelfDelete):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "no encontrado")
	case errors.Is(err, auth.ErrAlreadyExists):
		writeError(w, r, http.StatusConflict, "el usuario ya existe")
	default:
		writeError(w, r, http.StatusInternalServerError, "error interno")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeErrorPayload(w, r, code, msg, nil)
}

func writeErrorPayload(w http.ResponseWriter, r *http.Request, code int, msg string, extra map[string]any) {
	payload := map[string]any{
		"error": msg,
	}
	for k, v := range extra {
		payload[k] = v
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("el parámetro debe ser un número entero")
	}
	if val < min || val > max {
		return 0, errors.New("parámetro fuera de rango")
	}
	return val, nil
}

func clientInfo(r *http.Request) auth.ClientInfo {
	return auth.ClientInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
