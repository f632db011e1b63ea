package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/shelfguard/internal/audit"
	"github.com/dropDatabas3/shelfguard/internal/auth"
	"github.com/dropDatabas3/shelfguard/internal/cache"
	shelfhttp "github.com/dropDatabas3/shelfguard/internal/http"
	auditctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/audit"
	healthctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/health"
	mfactl "github.com/dropDatabas3/shelfguard/internal/http/controllers/mfa"
	securityctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/security"
	sessionctl "github.com/dropDatabas3/shelfguard/internal/http/controllers/session"
	"github.com/dropDatabas3/shelfguard/internal/http/helpers"
	"github.com/dropDatabas3/shelfguard/internal/http/middlewares"
	"github.com/dropDatabas3/shelfguard/internal/rate"
	"github.com/dropDatabas3/shelfguard/internal/security/backup"
	"github.com/dropDatabas3/shelfguard/internal/security/csrf"
	"github.com/dropDatabas3/shelfguard/internal/security/password"
	"github.com/dropDatabas3/shelfguard/internal/session"
)

// stubUsers es el UserStore mínimo para las pruebas end-to-end del router.
type stubUsers struct {
	mu    sync.Mutex
	byIdx map[string]*auth.User
}

func newStubUsers(users ...*auth.User) *stubUsers {
	s := &stubUsers{byIdx: make(map[string]*auth.User)}
	for _, u := range users {
		s.byIdx[u.Identifier] = u
	}
	return s
}

func (s *stubUsers) FindByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byIdx[identifier]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byIdx {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *stubUsers) SetPendingTwoFactorSecret(_ context.Context, accountID, secret string) error {
	return s.update(accountID, func(u *auth.User) { u.PendingTwoFactorSecret = secret })
}

func (s *stubUsers) ActivateTwoFactor(_ context.Context, accountID string) error {
	return s.update(accountID, func(u *auth.User) {
		u.TwoFactorSecret = u.PendingTwoFactorSecret
		u.PendingTwoFactorSecret = ""
		u.TwoFactorEnabled = true
	})
}

func (s *stubUsers) DisableTwoFactor(_ context.Context, accountID string) error {
	return s.update(accountID, func(u *auth.User) {
		u.TwoFactorEnabled = false
		u.TwoFactorSecret = ""
		u.PendingTwoFactorSecret = ""
	})
}

func (s *stubUsers) SetLastLogin(_ context.Context, accountID string, _ time.Time) error {
	return s.update(accountID, func(u *auth.User) {})
}

func (s *stubUsers) update(accountID string, fn func(*auth.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byIdx {
		if u.ID == accountID {
			fn(u)
			return nil
		}
	}
	return auth.ErrUserNotFound
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	return newTestRouterWith(t, session.Config{})
}

func newTestRouterWith(t *testing.T, sc session.Config) http.Handler {
	t.Helper()

	phc, err := password.Hash(password.BackupCode, "hunter2hunter2")
	require.NoError(t, err)

	users := newStubUsers(
		&auth.User{
			ID:           "acc-1",
			Identifier:   "ana@example.com",
			PasswordHash: phc,
		},
		&auth.User{
			ID:           "acc-admin",
			Identifier:   "ops@example.com",
			PasswordHash: phc,
			Admin:        true,
		},
	)

	cc := cache.NewMemory(time.Minute)
	auditLog := audit.New(audit.NewMemoryStore(100))
	limiter := rate.New(rate.NewMemoryStore(), rate.Config{})
	sessions := session.NewGuard(cc, auditLog, sc)
	csrfGuard := csrf.NewGuard(cc, auditLog, 0)
	vault := backup.New(backup.NewMemoryStore())
	orch := auth.NewOrchestrator(users, limiter, vault, sessions, auditLog, auth.Config{})

	cookie := helpers.CookieConfig{Name: "sid_test", SameSite: "strict", TTL: time.Hour}

	return shelfhttp.NewRouter(shelfhttp.RouterDeps{
		Login:    sessionctl.NewLoginController(orch, cookie),
		Logout:   sessionctl.NewLogoutController(orch, cookie),
		Csrf:     securityctl.NewCsrfController(csrfGuard),
		MFA:      mfactl.New(orch),
		Audit:    auditctl.New(auditLog),
		Health:   healthctl.New(map[string]healthctl.Pinger{"cache": okPinger{}}),
		Sessions: sessions,
		CsrfG:    csrfGuard,
		Users:    users,
		Cookie:   cookie,
	})
}

func login(t *testing.T, h http.Handler, identifier string) *http.Cookie {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": identifier,
		"password":   "hunter2hunter2",
	}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return sessionCookie(t, rec)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, cookie *http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", "router-test/1.0")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "sid_test" && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func TestRouter_LoginCsrfLogoutFlow(t *testing.T) {
	h := newTestRouter(t)

	// login
	rec := doJSON(t, h, http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "ana@example.com",
		"password":   "hunter2hunter2",
	}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := sessionCookie(t, rec)
	require.True(t, sid.HttpOnly)

	// token anti-forgery
	rec = doJSON(t, h, http.MethodGet, "/v1/csrf", nil, sid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var csrfResp struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &csrfResp))
	require.NotEmpty(t, csrfResp.Token)

	// logout con token
	rec = doJSON(t, h, http.MethodPost, "/v1/session/logout", nil, sid,
		map[string]string{middlewares.CSRFHeader: csrfResp.Token})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// la sesión quedó destruida
	rec = doJSON(t, h, http.MethodGet, "/v1/csrf", nil, sid, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_LogoutWithoutCsrfTokenRejected(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "ana@example.com",
		"password":   "hunter2hunter2",
	}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := sessionCookie(t, rec)

	rec = doJSON(t, h, http.MethodPost, "/v1/session/logout", nil, sid, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// la sesión sigue viva
	rec = doJSON(t, h, http.MethodGet, "/v1/csrf", nil, sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	h := newTestRouter(t)

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/csrf"},
		{http.MethodGet, "/v1/audit/recent"},
		{http.MethodPost, "/v1/session/logout"},
		{http.MethodPost, "/v1/mfa/enroll"},
	} {
		rec := doJSON(t, h, tc.method, tc.path, nil, nil, nil)
		require.Equalf(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouter_BadLoginIsGeneric(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "ana@example.com",
		"password":   "nope",
	}, nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVALID_CREDENTIALS", body.Code)
}

func TestRouter_MfaEnrollmentOverHTTP(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodPost, "/v1/session/login", map[string]string{
		"identifier": "ana@example.com",
		"password":   "hunter2hunter2",
	}, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sid := sessionCookie(t, rec)

	rec = doJSON(t, h, http.MethodGet, "/v1/csrf", nil, sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var csrfResp struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &csrfResp))

	rec = doJSON(t, h, http.MethodPost, "/v1/mfa/enroll", nil, sid,
		map[string]string{middlewares.CSRFHeader: csrfResp.Token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var enr struct {
		Secret string `json:"secret_base32"`
		URL    string `json:"otpauth_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enr))
	require.NotEmpty(t, enr.Secret)
	require.Contains(t, enr.URL, "otpauth://totp/")
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestRouter_AuditRequiresAdmin(t *testing.T) {
	h := newTestRouter(t)

	// cuenta común: autenticada pero sin permisos
	sid := login(t, h, "ana@example.com")
	rec := doJSON(t, h, http.MethodGet, "/v1/audit/recent", nil, sid, nil)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())

	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "FORBIDDEN", body.Code)

	// cuenta admin
	sid = login(t, h, "ops@example.com")
	rec = doJSON(t, h, http.MethodGet, "/v1/audit/recent", nil, sid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestRouter_CsrfTokenSurvivesSessionRotation(t *testing.T) {
	// con el intervalo en 1ns cada request autenticado rota el ID
	h := newTestRouterWith(t, session.Config{RotationInterval: time.Nanosecond})

	sid := login(t, h, "ana@example.com")

	rec := doJSON(t, h, http.MethodGet, "/v1/csrf", nil, sid, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rotated := sessionCookie(t, rec)
	require.NotEqual(t, sid.Value, rotated.Value)

	var csrfResp struct {
		Token string `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &csrfResp))

	// el token emitido antes de la rotación sigue valiendo después
	rec = doJSON(t, h, http.MethodPost, "/v1/session/logout", nil, rotated,
		map[string]string{middlewares.CSRFHeader: csrfResp.Token})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestRouter_HealthAndSecurityHeaders(t *testing.T) {
	h := newTestRouter(t)

	rec := doJSON(t, h, http.MethodGet, "/healthz", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = doJSON(t, h, http.MethodGet, "/readyz", nil, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
