package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"sigepic.org/api/spec"
	"sigepic.org/internal/auth"
	"sigepic.org/internal/obs"
)

// ReadyProbe reports whether the service can take traffic (e.g. DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth service.
type API struct {
	mux        *http.ServeMux
	svc        *auth.Service
	readyProbe ReadyProbe
	version    string

	rateBurst  int
	ratePerSec rate.Limit

	// stricter bucket guarding /v1/auth/login only
	loginBurst int
	loginRate  rate.Limit
	loginGuard http.Handler
}

func New(rp ReadyProbe, version string, svc *auth.Service) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
		rateBurst:  20,
		ratePerSec: 10,
		loginBurst: 5,
		loginRate:  rate.Every(3 * time.Minute),
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		a.loginGuard.ServeHTTP(w, r)
	})
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/cambiar-password", a.handleChangePassword)
	a.mux.HandleFunc("/v1/auth/perfil", a.handleProfile)

	// usuarios administration
	a.mux.HandleFunc("/v1/usuarios", a.handleUsuarios)
	a.mux.HandleFunc("/v1/usuarios/", a.handleUsuarioByID)

	// auditoria
	a.mux.HandleFunc("/v1/auditoria", a.handleAuditoria)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	a.loginGuard = RateLimit(http.HandlerFunc(a.handleLogin), a.loginBurst, a.loginRate)
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = SecurityHeaders(h)
	h = CORS(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "sigepic-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "sigepic-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
