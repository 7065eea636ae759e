package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/supabase"
	"github.com/evolury/estoque/internal/view"
	_ "github.com/evolury/estoque/testing"
)

type loginHarness struct {
	router   http.Handler
	sessions *shared.SessionManager
	service  *auth.Service
	cookie   *http.Cookie
}

func newLoginHarness(t *testing.T, provider auth.IdentityProvider) *loginHarness {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	service := auth.NewService(provider, clockwork.NewFakeClockAt(start), nil)
	handler := auth.NewHandler(nil, service, templates, csrfManager)

	h := &loginHarness{sessions: sessionManager, service: service}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			ctx := shared.ContextWithSession(req.Context(), sess)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, req.WithContext(ctx))
			if err := sessionManager.Commit(ctx, w, req, sess); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	r.Route("/auth", handler.MountRoutes)
	h.router = r
	return h
}

func (h *loginHarness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	res := httptest.NewRecorder()
	h.router.ServeHTTP(res, req)
	for _, c := range res.Result().Cookies() {
		if c.Name == h.sessions.CookieName() {
			h.cookie = c
		}
	}
	return res
}

func (h *loginHarness) session(t *testing.T) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(h.cookie)
	sess, err := h.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func postLogin(email, password string) *http.Request {
	form := url.Values{"email": {email}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginPage(t *testing.T) {
	h := newLoginHarness(t, &stubProvider{})
	res := h.do(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "<form")
	require.NotNil(t, h.cookie)
	assert.NotEmpty(t, h.session(t).Get(shared.CSRFSessionKey))
}

func TestLoginSuccessRedirectsHome(t *testing.T) {
	h := newLoginHarness(t, &stubProvider{signIn: validSession()})
	res := h.do(t, postLogin("ana@loja.com", "secret"))
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/", res.Header().Get("Location"))
	assert.Equal(t, "user-1", h.session(t).User())

	// A signed-in visitor skips the form.
	res = h.do(t, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestLoginShowsProviderMessageVerbatim(t *testing.T) {
	h := newLoginHarness(t, &stubProvider{signInErr: &supabase.APIError{Status: http.StatusBadRequest, ErrorDescription: "Invalid login credentials"}})
	res := h.do(t, postLogin("ana@loja.com", "wrong"))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Invalid login credentials")
	assert.Contains(t, body, `value="ana@loja.com"`)
	assert.NotContains(t, body, "wrong")
	assert.Empty(t, h.session(t).User())
}

func TestLoginWithoutUserShowsGenericMessage(t *testing.T) {
	h := newLoginHarness(t, &stubProvider{signIn: &supabase.Session{AccessToken: "t"}})
	res := h.do(t, postLogin("ana@loja.com", "secret"))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Credenciais inválidas ou erro desconhecido.")
}

func TestLoginValidatesFields(t *testing.T) {
	h := newLoginHarness(t, &stubProvider{signIn: validSession()})
	res := h.do(t, postLogin("not-an-email", ""))
	assert.Equal(t, http.StatusBadRequest, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, "Informe um email válido.")
	assert.Contains(t, body, "Informe a senha.")
}
