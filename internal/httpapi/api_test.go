package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"sigepic.org/internal/audit"
	"sigepic.org/internal/auth"
)

// memStore is an in-memory auth.Store for exercising the full HTTP stack.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]*auth.Account
	sessions []*auth.Session
	audit    []*auth.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]*auth.Account)}
}

func (m *memStore) Accounts(ctx context.Context) auth.CredentialStore { return (*memAccounts)(m) }
func (m *memStore) Sessions(ctx context.Context) auth.SessionStore    { return (*memSessions)(m) }
func (m *memStore) Audit(ctx context.Context) auth.AuditStore         { return (*memAudit)(m) }

type memAccounts memStore

func (m *memAccounts) Create(ctx context.Context, acct *auth.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == acct.Username {
			return auth.ErrAlreadyExists
		}
	}
	cp := *acct
	m.accounts[acct.ID] = &cp
	return nil
}

func (m *memAccounts) FindByUsername(ctx context.Context, username string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Username == username {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memAccounts) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) List(ctx context.Context, filter auth.AccountFilter) ([]*auth.Account, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auth.Account
	for _, a := range m.accounts {
		if filter.Active != nil && a.Active != *filter.Active {
			continue
		}
		if filter.Role != "" && a.Role != filter.Role {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (m *memAccounts) Update(ctx context.Context, id string, upd auth.AccountUpdate) (*auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	if upd.FullName != nil {
		a.FullName = *upd.FullName
	}
	if upd.Email != nil {
		a.Email = *upd.Email
	}
	if upd.Role != nil {
		a.Role = *upd.Role
	}
	if upd.Active != nil {
		a.Active = *upd.Active
	}
	if upd.PasswordHash != nil {
		a.PasswordHash = *upd.PasswordHash
	}
	cp := *a
	return &cp, nil
}

func (m *memAccounts) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.accounts, id)
	return nil
}

func (m *memAccounts) UpdateLoginState(ctx context.Context, id string, state auth.LoginState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.FailedAttempts = state.FailedAttempts
	a.LockedUntil = state.LockedUntil
	a.LastLoginAt = state.LastLoginAt
	return nil
}

func (m *memAccounts) UpdatePasswordHash(ctx context.Context, id, hash string, mustChange bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.PasswordHash = hash
	a.MustChangePassword = mustChange
	return nil
}

type memSessions memStore

func (m *memSessions) Create(ctx context.Context, sess *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (m *memSessions) RevokeByToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.Token == token {
			s.Revoked = true
		}
	}
	return nil
}

type memAudit memStore

func (m *memAudit) Append(ctx context.Context, entry *auth.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.audit = append(m.audit, &cp)
	return nil
}

func (m *memAudit) List(ctx context.Context, filter auth.AuditFilter) ([]*auth.AuditEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audit, len(m.audit), nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memStore
	t       *testing.T
}

func seed(t *testing.T, store *memStore, username, password string, role auth.Role, active bool) string {
	t.Helper()
	hash, err := auth.NewHasher(bcrypt.MinCost).Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	id := "acct-" + username
	err = store.Accounts(context.Background()).Create(context.Background(), &auth.Account{
		ID: id, Username: username, PasswordHash: hash,
		FullName: "Test " + username, Role: role, Active: active,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", username, err)
	}
	return id
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := newMemStore()
	seed(t, store, "admin", "Admin123!", auth.RoleAdmin, true)
	seed(t, store, "auditor1", "Auditor123!", auth.RoleAuditor, true)
	seed(t, store, "baja1", "Baja123!", auth.RoleUsuario, false)

	tokens, err := auth.NewTokenService("test-access-secret", "test-refresh-secret")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	svc, err := auth.NewService(store, tokens,
		auth.WithHasher(auth.NewHasher(bcrypt.MinCost)),
		auth.WithRecorder(audit.NewRecorder(store)),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc)
	api.rateBurst = 100
	api.ratePerSec = 100
	api.loginBurst = 100
	api.loginRate = 100

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

type loginPayload struct {
	Token        string              `json:"token"`
	RefreshToken string              `json:"refreshToken"`
	ExpiresAt    time.Time           `json:"expiresAt"`
	User         auth.AccountSummary `json:"user"`
}

func (c *apiClient) login(username, password string) loginPayload {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("login %s: unexpected status %d", username, resp.StatusCode)
	}
	payload := decode[loginPayload](c.t, resp)
	if payload.Token == "" {
		c.t.Fatal("empty token issued")
	}
	return payload
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthReadyInfo(t *testing.T) {
	c := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestLoginAndProfile(t *testing.T) {
	c := newTestAPI(t)

	payload := c.login("admin", "Admin123!")
	if payload.User.Username != "admin" || payload.User.Role != auth.RoleAdmin {
		t.Fatalf("unexpected user: %+v", payload.User)
	}
	if payload.RefreshToken == "" {
		t.Fatal("expected refresh token")
	}

	resp := c.get("/v1/auth/perfil", nil, bearer(payload.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("perfil: status %d", resp.StatusCode)
	}
	profile := decode[auth.AccountSummary](t, resp)
	if profile.Username != "admin" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestLoginRejections(t *testing.T) {
	c := newTestAPI(t)

	cases := []struct {
		name       string
		username   string
		password   string
		wantStatus int
	}{
		{"wrong password", "admin", "nope", http.StatusUnauthorized},
		{"unknown user", "ghost", "nope", http.StatusUnauthorized},
		{"inactive account", "baja1", "Baja123!", http.StatusForbidden},
	}
	var messages []string
	for _, tc := range cases {
		resp := c.post("/v1/auth/login", map[string]string{
			"username": tc.username, "password": tc.password,
		}, nil)
		if resp.StatusCode != tc.wantStatus {
			t.Fatalf("%s: status %d, want %d", tc.name, resp.StatusCode, tc.wantStatus)
		}
		body := decode[map[string]any](t, resp)
		msg, _ := body["error"].(string)
		if msg == "" {
			t.Fatalf("%s: missing error message", tc.name)
		}
		messages = append(messages, msg)
	}
	// Wrong password and unknown user must read identically.
	if messages[0] != messages[1] {
		t.Fatalf("enumeration leak: %q vs %q", messages[0], messages[1])
	}
}

func TestLoginLockoutOverHTTP(t *testing.T) {
	c := newTestAPI(t)

	for i := 0; i < 3; i++ {
		resp := c.post("/v1/auth/login", map[string]string{
			"username": "auditor1", "password": "wrong",
		}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("failure %d: status %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := c.post("/v1/auth/login", map[string]string{
		"username": "auditor1", "password": "Auditor123!",
	}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("locked login: status %d, want 403", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["bloqueadoHasta"] == nil {
		t.Fatalf("expected bloqueadoHasta in body: %v", body)
	}
}

func TestLoginRateLimitStrict(t *testing.T) {
	store := newMemStore()
	seed(t, store, "admin", "Admin123!", auth.RoleAdmin, true)

	tokens, err := auth.NewTokenService("test-access-secret", "test-refresh-secret")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}
	svc, err := auth.NewService(store, tokens,
		auth.WithHasher(auth.NewHasher(bcrypt.MinCost)),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc)
	api.rateBurst = 100
	api.ratePerSec = 100
	api.loginBurst = 2
	api.loginRate = rate.Every(time.Hour)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)
	c := &apiClient{baseURL: srv.URL, client: srv.Client(), store: store, t: t}

	for i := 0; i < 2; i++ {
		resp := c.post("/v1/auth/login", map[string]string{
			"username": "admin", "password": "wrong",
		}, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d: status %d", i+1, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := c.post("/v1/auth/login", map[string]string{
		"username": "admin", "password": "Admin123!",
	}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("throttled login: status %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After header")
	}
	resp.Body.Close()

	// the strict bucket guards login only
	resp = c.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz throttled by login bucket: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	c := newTestAPI(t)

	resp := c.get("/v1/auth/perfil", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/auth/perfil", nil, bearer("garbage.token.here"))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage token: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRBACOverHTTP(t *testing.T) {
	c := newTestAPI(t)

	auditor := c.login("auditor1", "Auditor123!")

	// Auditors read the trail but cannot manage usuarios.
	resp := c.get("/v1/auditoria", nil, bearer(auditor.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auditoria as auditor: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/v1/usuarios", map[string]any{
		"username": "nuevo", "password": "Nuevo123!", "rol": "usuario",
	}, bearer(auditor.Token))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("create usuario as auditor: status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUsuarioAdministration(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("admin", "Admin123!")

	resp := c.post("/v1/usuarios", map[string]any{
		"username":       "nuevo1",
		"password":       "Nuevo123!",
		"nombreCompleto": "Nuevo Usuario",
		"rol":            "usuario",
	}, bearer(admin.Token))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: status %d", resp.StatusCode)
	}
	created := decode[auth.AccountSummary](t, resp)
	if !created.MustChangePassword {
		t.Fatal("new usuario must be flagged to change password")
	}

	// Duplicate username conflicts.
	resp = c.post("/v1/usuarios", map[string]any{
		"username": "nuevo1", "password": "Nuevo123!", "rol": "usuario",
	}, bearer(admin.Token))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: status %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/v1/usuarios", url.Values{"rol": {"usuario"}}, bearer(admin.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["total"] == nil {
		t.Fatalf("expected total in listing: %v", listing)
	}

	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/v1/usuarios/acct-admin", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	delResp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	if delResp.StatusCode != http.StatusConflict {
		t.Fatalf("self-delete: status %d, want 409", delResp.StatusCode)
	}
	delResp.Body.Close()
}

func TestUnlockEndpoint(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("admin", "Admin123!")

	for i := 0; i < 3; i++ {
		resp := c.post("/v1/auth/login", map[string]string{
			"username": "auditor1", "password": "wrong",
		}, nil)
		resp.Body.Close()
	}

	resp := c.post("/v1/usuarios/acct-auditor1/desbloquear", nil, bearer(admin.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("desbloquear: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	if resp := c.post("/v1/auth/login", map[string]string{
		"username": "auditor1", "password": "Auditor123!",
	}, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("login after unlock: status %d", resp.StatusCode)
	} else {
		resp.Body.Close()
	}
}

func TestLogoutFlow(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("admin", "Admin123!")

	resp := c.post("/v1/auth/logout", nil, bearer(admin.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	c.store.mu.Lock()
	revoked := len(c.store.sessions) > 0 && c.store.sessions[0].Revoked
	c.store.mu.Unlock()
	if !revoked {
		t.Fatal("session not revoked after logout")
	}
}

func TestRefreshEndpoint(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("admin", "Admin123!")

	resp := c.post("/v1/auth/refresh", map[string]string{
		"refreshToken": admin.RefreshToken,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh: status %d", resp.StatusCode)
	}
	refreshed := decode[loginPayload](t, resp)
	if refreshed.Token == "" || refreshed.RefreshToken == "" {
		t.Fatal("expected fresh token pair")
	}

	// An access token is not a refresh token.
	resp = c.post("/v1/auth/refresh", map[string]string{
		"refreshToken": admin.Token,
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh with access token: status %d, want 401", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuditTrailRecordsLogins(t *testing.T) {
	c := newTestAPI(t)
	admin := c.login("admin", "Admin123!")

	resp := c.post("/v1/auth/login", map[string]string{
		"username": "admin", "password": "wrong",
	}, nil)
	resp.Body.Close()

	resp = c.get("/v1/auditoria", nil, bearer(admin.Token))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auditoria: status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	entries, _ := body["auditoria"].([]any)
	if len(entries) < 2 {
		t.Fatalf("expected success and failure entries, got %d", len(entries))
	}
}
