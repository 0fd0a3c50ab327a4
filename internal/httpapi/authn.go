package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"sigepic.org/internal/auth"
)

const authHeader = "Authorization"

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/openapi.yaml",
	"/v1/info",
	"/",
}

// withAuth verifies the bearer token on every non-public request and stashes
// the claims and raw token in the context. Expired and tampered tokens get
// distinct messages so clients know whether to refresh.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.svc == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get(authHeader)
		claims, err := a.svc.Authenticate(r.Context(), header)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		ctx = auth.ContextWithToken(ctx, strings.TrimSpace(header[len("Bearer "):]))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermiso checks the caller's role against the permission table.
// Returns the claims when allowed.
func (a *API) requirePermiso(w http.ResponseWriter, r *http.Request, resource auth.Resource, action auth.Action) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, auth.ErrMissingToken.Error())
		return nil, false
	}
	if err := a.svc.Authorize(claims, resource, action); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			writeError(w, r, http.StatusForbidden, auth.ErrForbidden.Error())
		} else {
			writeError(w, r, http.StatusInternalServerError, "error interno")
		}
		return nil, false
	}
	return claims, true
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
