package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/guildgate/internal/cache"
	"github.com/dropDatabas3/guildgate/internal/discord"
	"github.com/dropDatabas3/guildgate/internal/http/middlewares"
	"github.com/dropDatabas3/guildgate/internal/rate"
	"github.com/dropDatabas3/guildgate/internal/reconcile"
	"github.com/dropDatabas3/guildgate/internal/security/loginkey"
	"github.com/dropDatabas3/guildgate/internal/security/session"
	"github.com/dropDatabas3/guildgate/internal/store/core"
	"github.com/dropDatabas3/guildgate/internal/store/memory"
	"github.com/dropDatabas3/guildgate/internal/verify"
)

var testSecret = []byte("router-test-secret")

type stubExchanger struct {
	resp *discord.TokenResponse
	err  error
}

func (s *stubExchanger) ExchangeCode(context.Context, string, string) (*discord.TokenResponse, error) {
	return s.resp, s.err
}

type stubFetcher struct {
	user *discord.User
	err  error
}

func (s *stubFetcher) CurrentUser(context.Context, string) (*discord.User, error) {
	return s.user, s.err
}

type stubMembership struct {
	addErr error
}

func (s *stubMembership) AddGuildMember(context.Context, string, string, string, []string) (discord.AddResult, error) {
	if s.addErr != nil {
		return 0, s.addErr
	}
	return discord.MemberCreated, nil
}

func (s *stubMembership) AddMemberRole(context.Context, string, string, string) error { return nil }

func newTestRouter(t *testing.T, st *memory.Store, ex verify.TokenExchanger, fe verify.IdentityFetcher) http.Handler {
	t.Helper()

	keyHash, err := loginkey.Hash(loginkey.Default, "admin-key")
	if err != nil {
		t.Fatal(err)
	}
	ownerHash, err := loginkey.Hash(loginkey.Default, "owner-key")
	if err != nil {
		t.Fatal(err)
	}

	rec := verify.NewRecorder(ex, fe, st, nil)
	recon := reconcile.New(&stubMembership{}, reconcile.NewDelayPacer(time.Millisecond), nil, nil)
	sessions := session.NewRevoker(cache.NewMemory(0))

	return NewRouter(RouterDeps{
		Callback: &CallbackHandler{Recorder: rec, FrontendURL: "https://front.example"},
		Login: &LoginHandler{
			Keys: []LoginKey{
				{KeyHash: keyHash, Role: session.RoleAdmin},
				{KeyHash: ownerHash, Role: session.RoleOwner},
			},
			JWTSecret:  testSecret,
			SessionTTL: time.Hour,
		},
		Logout:    &LogoutHandler{Sessions: sessions},
		Users:     &UsersHandler{Repo: st},
		Pull:      &PullHandler{Repo: st, Reconciler: recon},
		Stats:     &StatsHandler{Repo: st},
		CheckUser: &CheckUserHandler{Repo: st},
		Readyz:    &ReadyzHandler{Repo: st},
		JWTSecret: testSecret,
		Sessions:  sessions,
	})
}

func adminToken(t *testing.T, role session.Role) string {
	t.Helper()
	tok, err := session.Issue(testSecret, role, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestCallbackMissingCode(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/verify/callback", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if loc != "https://front.example/verification-failed?error=missing_code" {
		t.Fatalf("location = %q", loc)
	}
}

func TestCallbackSuccessRedirectsWithoutTokens(t *testing.T) {
	st := memory.New()
	h := newTestRouter(t, st,
		&stubExchanger{resp: &discord.TokenResponse{AccessToken: "secret-token"}},
		&stubFetcher{user: &discord.User{ID: "42", Username: "neo"}},
	)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/verify/callback?code=abc&state=x", nil))

	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	u, err := url.Parse(loc)
	if err != nil {
		t.Fatal(err)
	}
	if u.Path != "/verification-success" || u.Query().Get("user") != "neo" {
		t.Fatalf("location = %q", loc)
	}
	if strings.Contains(loc, "secret-token") {
		t.Fatal("token leaked into redirect")
	}
	if _, err := st.GetByExternalID(context.Background(), "42"); err != nil {
		t.Fatalf("user not stored: %v", err)
	}
}

func TestCallbackExchangeFailure(t *testing.T) {
	h := newTestRouter(t, memory.New(),
		&stubExchanger{err: errors.New("invalid_grant")}, &stubFetcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/verify/callback?code=used", nil))

	if got := rr.Header().Get("Location"); !strings.Contains(got, "error=token_exchange") {
		t.Fatalf("location = %q", got)
	}
}

func TestAdminLoginFlow(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})

	body := bytes.NewBufferString(`{"login_key":"admin-key"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Role != "admin" || resp.Token == "" {
		t.Fatalf("resp = %+v", resp)
	}

	claims, err := session.Parse(testSecret, resp.Token)
	if err != nil || claims.Role != session.RoleAdmin {
		t.Fatalf("issued token invalid: %v", err)
	}
}

func TestAdminLoginRejected(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})

	body := bytes.NewBufferString(`{"login_key":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/login", body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})
	tok := adminToken(t, session.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/verified-users", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("before logout: status = %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/admin/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: status = %d body = %s", rr.Code, rr.Body.String())
	}

	// El token sigue sin expirar, pero la sesión ya no vale.
	req = httptest.NewRequest(http.MethodGet, "/v1/admin/verified-users", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("after logout: status = %d", rr.Code)
	}
}

func TestAdminEndpointsRequireSession(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/verified-users", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/verified-users", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rr.Code)
	}
}

func TestOwnerEndpointsRejectAdmin(t *testing.T) {
	st := memory.New()
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{ExternalID: "42", Username: "neo", AccessToken: "tok"})
	h := newTestRouter(t, st, &stubExchanger{}, &stubFetcher{})

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/v1/admin/verified-users/export"},
		{http.MethodDelete, "/v1/admin/verified-users/42"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleAdmin))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != http.StatusForbidden {
			t.Errorf("%s %s with admin role: status = %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestListNeverExposesTokens(t *testing.T) {
	st := memory.New()
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{
		ExternalID: "42", Username: "neo", AccessToken: "super-secret", RefreshToken: "also-secret",
	})
	h := newTestRouter(t, st, &stubExchanger{}, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/verified-users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleAdmin))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "super-secret") || strings.Contains(rr.Body.String(), "also-secret") {
		t.Fatal("tokens leaked in list response")
	}
}

func TestExportIncludesTokensForOwner(t *testing.T) {
	st := memory.New()
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{
		ExternalID: "42", Username: "neo", AccessToken: "super-secret",
	})
	h := newTestRouter(t, st, &stubExchanger{}, &stubFetcher{})

	req := httptest.NewRequest(http.MethodGet, "/v1/admin/verified-users/export", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleOwner))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "super-secret") {
		t.Fatal("export must include tokens")
	}
}

func TestDeleteUser(t *testing.T) {
	st := memory.New()
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{ExternalID: "42", Username: "neo"})
	h := newTestRouter(t, st, &stubExchanger{}, &stubFetcher{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/admin/verified-users/42", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleOwner))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if _, err := st.GetByExternalID(context.Background(), "42"); !core.IsNotFound(err) {
		t.Fatalf("user still present: %v", err)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodDelete, "/v1/admin/verified-users/42", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleOwner))
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d", rr.Code)
	}
}

func TestPullReturnsReport(t *testing.T) {
	st := memory.New()
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{ExternalID: "1", Username: "a", AccessToken: "t1"})
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{ExternalID: "2", Username: "b"})
	h := newTestRouter(t, st, &stubExchanger{}, &stubFetcher{})

	body := bytes.NewBufferString(`{"target_guild_id":"g1"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/pull", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleAdmin))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rr.Code, rr.Body.String())
	}
	var rep reconcile.Report
	if err := json.Unmarshal(rr.Body.Bytes(), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Requested != 2 || rep.Succeeded != 1 || rep.Skipped != 1 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestPullRequiresGuildID(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/pull", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken(t, session.RoleAdmin))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCheckUser(t *testing.T) {
	st := memory.New()
	_ = st.UpsertByExternalID(context.Background(), &core.VerifiedUser{
		ExternalID: "42", Username: "neo", AccessToken: "secret", VerifiedAt: time.Now().UTC(),
	})
	h := newTestRouter(t, st, &stubExchanger{}, &stubFetcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/check-user/42", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp checkUserResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Verified || resp.Username != "neo" {
		t.Fatalf("resp = %+v", resp)
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatal("token leaked in check-user response")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/check-user/999", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unknown user status = %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Verified {
		t.Fatal("unknown user reported verified")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	lim := rate.NewMemoryLimiter(1, time.Minute)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := middlewares.Chain(ok, middlewares.WithRateLimit(lim, middlewares.IPRateKey))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("first request: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newTestRouter(t, memory.New(), &stubExchanger{}, &stubFetcher{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rr.Code)
	}
}
