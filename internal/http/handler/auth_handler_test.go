package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/base2ML/baby-raffle-platform-sub000/internal/domain"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/http/handler"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/http/middleware"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/oauth"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/tenant"
	"github.com/base2ML/baby-raffle-platform-sub000/internal/token"
)

const baseDomain = "base2ml.com"

type authFixture struct {
	handler *handler.AuthHandler
	tenants *memTenantRepo
	users   *memUserRepo
	tokens  *token.Service
}

func newAuthFixture(t *testing.T, provider *stubProvider) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tenants := newMemTenantRepo()
	tenants.tenants["acme"] = domain.Tenant{ID: "t1", Subdomain: "acme", Status: domain.TenantActive, Plan: domain.PlanFree}
	users := newMemUserRepo()

	directory := tenant.NewDirectory(tenants, 30*time.Second, time.Second)
	tokens, err := token.NewService([]byte("0123456789abcdef0123456789abcdef"), time.Hour, directory, users)
	require.NoError(t, err)
	exchange := oauth.NewExchange([]oauth.Provider{provider}, oauth.NewMemoryStateStore(), directory, users, tokens, 5*time.Minute)

	return &authFixture{
		handler: handler.NewAuthHandler(exchange, users, baseDomain),
		tenants: tenants,
		users:   users,
		tokens:  tokens,
	}
}

func (f *authFixture) router() *gin.Engine {
	r := gin.New()
	r.GET("/auth/oauth/start", f.handler.OAuthStart)
	r.GET("/auth/oauth/callback", f.handler.OAuthCallback)
	r.POST("/auth/oauth/callback", f.handler.OAuthCallback)
	return r
}

func getJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestOAuthStartRequiresParams(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "http://acme."+baseDomain+"/auth/oauth/start", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "invalid_request", getJSON(t, w)["error"])
}

func TestOAuthStartUnknownProvider(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"http://acme."+baseDomain+"/auth/oauth/start?provider=gitlab&redirect_uri=https://x/cb", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOAuthStartUnknownTenant(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"http://ghost."+baseDomain+"/auth/oauth/start?provider=google&redirect_uri=https://x/cb", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "tenant_not_found", getJSON(t, w)["error"])
}

func TestOAuthStartReturnsAuthorizationURL(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"http://acme."+baseDomain+"/auth/oauth/start?provider=google&redirect_uri=https://x/cb", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := getJSON(t, w)
	require.NotEmpty(t, body["state"])
	require.Contains(t, body["authorization_url"], body["state"])
}

func TestOAuthCallbackProviderErrorRedirects(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/callback?error=access_denied", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/login", loc.Path)
	require.Equal(t, "provider_error", loc.Query().Get("error"))
}

func TestOAuthCallbackStateMismatchRedirects(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	r := f.router()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/callback?code=abc&state=forged", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "state_mismatch", loc.Query().Get("error"))
	require.Empty(t, f.users.users, "no account may be created on a forged state")
}

func TestOAuthCallbackSuccess(t *testing.T) {
	p := &stubProvider{name: "google", identity: oauth.ProviderIdentity{Subject: "g-1", Email: "a@x.test", Name: "A"}}
	f := newAuthFixture(t, p)
	r := f.router()

	// Start the flow on acme's subdomain to bind the state.
	start := httptest.NewRecorder()
	startReq := httptest.NewRequest(http.MethodGet,
		"http://acme."+baseDomain+"/auth/oauth/start?provider=google&redirect_uri=https://x/cb", nil)
	r.ServeHTTP(start, startReq)
	require.Equal(t, http.StatusOK, start.Code)
	state := getJSON(t, start)["state"].(string)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/oauth/callback?code=abc&state="+state, nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := getJSON(t, w)
	require.NotEmpty(t, body["access_token"])
	require.Equal(t, "Bearer", body["token_type"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "br_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	// The issued token round-trips through verification.
	id, err := f.tokens.Verify(context.Background(), body["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, "t1", id.TenantID)
}

func TestOAuthCallbackFormPost(t *testing.T) {
	// Apple sends the callback as a form post, not a query string.
	p := &stubProvider{name: "apple", identity: oauth.ProviderIdentity{Subject: "ap-1", Email: "a@x.test"}}
	f := newAuthFixture(t, p)
	r := f.router()

	start := httptest.NewRecorder()
	startReq := httptest.NewRequest(http.MethodGet,
		"http://acme."+baseDomain+"/auth/oauth/start?provider=apple&redirect_uri=https://x/cb", nil)
	r.ServeHTTP(start, startReq)
	require.Equal(t, http.StatusOK, start.Code)
	state := getJSON(t, start)["state"].(string)

	form := url.Values{}
	form.Set("code", "abc")
	form.Set("state", state)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/oauth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body := getJSON(t, w)
	require.NotEmpty(t, body["access_token"])

	id, err := f.tokens.Verify(context.Background(), body["access_token"].(string))
	require.NoError(t, err)
	require.Equal(t, "t1", id.TenantID)
}

func TestOAuthCallbackFormPostProviderError(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "apple"})
	r := f.router()

	form := url.Values{}
	form.Set("error", "user_cancelled_authorize")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/oauth/callback", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "provider_error", loc.Query().Get("error"))
}

func TestMeRequiresAuthentication(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})

	// Mounted as in the router: the auth gate runs before the handler.
	r := gin.New()
	r.GET("/api/me", middleware.RequireAuth(), f.handler.Me)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{name: "google"})
	u, err := f.users.Create(context.Background(), domain.User{
		TenantID: "t1", Email: "a@x.test", Name: "A",
		Role: domain.RoleUser, Status: domain.UserActive,
	})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/api/me",
		func(c *gin.Context) {
			middleware.SetRequestContext(c, domain.RequestContext{
				TenantID: "t1",
				Tenant:   domain.Tenant{ID: "t1", Subdomain: "acme"},
				UserID:   u.ID,
				Role:     u.Role,
				Source:   domain.SourceToken,
			})
		},
		middleware.RequireAuth(),
		f.handler.Me,
	)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := getJSON(t, w)
	require.Equal(t, "a@x.test", body["email"])
	require.Equal(t, "acme", body["tenant"])
}
