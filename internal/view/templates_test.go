package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolury/estoque/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

type loginForm struct{ Email string }

type loginData struct {
	Form   loginForm
	Errors map[string]string
}

func TestRenderStatusWritesPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.RenderStatus(rr, http.StatusBadRequest, "pages/login.html", TemplateData{
		Title:     "Login",
		CSRFToken: "tok",
		Flash:     &shared.FlashMessage{Kind: "error", Message: "Sessão expirada"},
		Data:      loginData{Form: loginForm{Email: "a@b.c"}, Errors: map[string]string{"general": "Invalid login credentials"}},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	body := rr.Body.String()
	assert.Contains(t, body, `value="a@b.c"`)
	assert.Contains(t, body, "Invalid login credentials")
	assert.Contains(t, body, "mensagem-erro")
	assert.Contains(t, body, `content="tok"`)
	// The header only shows for a signed-in user.
	assert.NotContains(t, body, "/logout")
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, "pages/missing.html", TemplateData{})
	assert.Error(t, err)
	assert.Zero(t, rr.Body.Len())
}

func TestRenderWithoutEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Render(httptest.NewRecorder(), "pages/login.html", TemplateData{}))
}
