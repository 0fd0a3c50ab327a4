package httpapi

import (
	"net/http"
	"strings"

	"sigepic.org/internal/auth"
)

type createUsuarioRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	NombreCompleto string `json:"nombreCompleto"`
	Email          string `json:"email"`
	Rol            string `json:"rol"`
	Activo         *bool  `json:"activo"`
}

func (a *API) handleUsuarios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsuarios(w, r)
	case http.MethodPost:
		a.createUsuario(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listUsuarios(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermiso(w, r, auth.ResourceUsuario, auth.ActionRead); !ok {
		return
	}

	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), 20, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	filter := auth.AccountFilter{Page: page, Limit: limit}
	if raw := strings.TrimSpace(q.Get("activo")); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}
	if raw := strings.TrimSpace(q.Get("rol")); raw != "" {
		filter.Role = auth.Role(raw)
	}

	usuarios, total, err := a.svc.ListAccounts(r.Context(), filter)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"usuarios": usuarios,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

func (a *API) createUsuario(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermiso(w, r, auth.ResourceUsuario, auth.ActionCreate); !ok {
		return
	}

	var req createUsuarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "la contraseña debe tener al menos 8 caracteres")
		return
	}

	active := true
	if req.Activo != nil {
		active = *req.Activo
	}
	usuario, err := a.svc.CreateAccount(r.Context(), auth.NewAccountInput{
		Username: req.Username,
		Password: req.Password,
		FullName: req.NombreCompleto,
		Email:    req.Email,
		Role:     auth.Role(req.Rol),
		Active:   active,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, usuario)
}

type updateUsuarioRequest struct {
	NombreCompleto *string `json:"nombreCompleto"`
	Email          *string `json:"email"`
	Rol            *string `json:"rol"`
	Activo         *bool   `json:"activo"`
	Password       *string `json:"password"`
}

func (a *API) handleUsuarioByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/usuarios/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "no encontrado")
		return
	}

	if rest == "desbloquear" {
		a.unlockUsuario(w, r, id)
		return
	}
	if rest != "" {
		writeError(w, r, http.StatusNotFound, "no encontrado")
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.getUsuario(w, r, id)
	case http.MethodPut:
		a.updateUsuario(w, r, id)
	case http.MethodDelete:
		a.deleteUsuario(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) getUsuario(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requirePermiso(w, r, auth.ResourceUsuario, auth.ActionRead); !ok {
		return
	}
	usuario, err := a.svc.Profile(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usuario)
}

func (a *API) updateUsuario(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requirePermiso(w, r, auth.ResourceUsuario, auth.ActionUpdate); !ok {
		return
	}

	var req updateUsuarioRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Password != nil && len(*req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "la contraseña debe tener al menos 8 caracteres")
		return
	}

	in := auth.UpdateAccountInput{
		FullName: req.NombreCompleto,
		Email:    req.Email,
		Active:   req.Activo,
		Password: req.Password,
	}
	if req.Rol != nil {
		role := auth.Role(*req.Rol)
		in.Role = &role
	}

	usuario, err := a.svc.UpdateAccount(r.Context(), id, in)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usuario)
}

func (a *API) deleteUsuario(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := a.requirePermiso(w, r, auth.ResourceUsuario, auth.ActionDelete)
	if !ok {
		return
	}
	if err := a.svc.DeleteAccount(r.Context(), id, claims.AccountID()); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mensaje": "usuario eliminado"})
}

// unlockUsuario clears a lockout by re-activating the account.
func (a *API) unlockUsuario(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requirePermiso(w, r, auth.ResourceUsuario, auth.ActionUpdate); !ok {
		return
	}

	active := true
	usuario, err := a.svc.UpdateAccount(r.Context(), id, auth.UpdateAccountInput{Active: &active})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usuario)
}
