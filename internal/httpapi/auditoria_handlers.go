package httpapi

import (
	"net/http"
	"strings"
	"time"

	"sigepic.org/internal/auth"
)

func (a *API) handleAuditoria(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermiso(w, r, auth.ResourceAuditoria, auth.ActionRead); !ok {
		return
	}

	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1_000_000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parsePositiveInt(q.Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	filter := auth.AuditFilter{
		Table:     strings.TrimSpace(q.Get("tabla")),
		AccountID: strings.TrimSpace(q.Get("usuarioId")),
		Page:      page,
		Limit:     limit,
	}
	if raw := strings.TrimSpace(q.Get("desde")); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "desde debe ser una fecha RFC3339")
			return
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(q.Get("hasta")); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "hasta debe ser una fecha RFC3339")
			return
		}
		filter.To = &to
	}

	entries, total, err := a.svc.AuditTrail(r.Context(), filter)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auditoria": entries,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}
