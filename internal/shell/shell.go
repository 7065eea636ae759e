// Package shell owns the authenticated and unauthenticated halves of the
// site: it follows session changes, guards the form routes and serves the
// entry and logout endpoints.
package shell

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/shared"
)

// EventRecorder counts session change events.
type EventRecorder interface {
	ObserveAuthEvent(event string)
}

// Shell routes requests according to the current session.
type Shell struct {
	logger   *slog.Logger
	service  *auth.Service
	sessions *shared.SessionManager
	recorder EventRecorder

	mu  sync.Mutex
	sub *auth.Subscription
}

// New constructs a Shell. recorder may be nil.
func New(logger *slog.Logger, service *auth.Service, sessions *shared.SessionManager, recorder EventRecorder) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{logger: logger, service: service, sessions: sessions, recorder: recorder}
}

// Start subscribes to session changes. Calling it twice keeps one
// subscription.
func (s *Shell) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != nil {
		return
	}
	s.sub = s.service.OnSessionChange(s.onSessionChange)
}

// Close releases the session change subscription.
func (s *Shell) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()
	sub.Unsubscribe()
}

func (s *Shell) onSessionChange(ev auth.Event) {
	s.logger.Info("session changed",
		slog.String("event", string(ev.Kind)),
		slog.String("user_id", ev.User.ID))
	if s.recorder != nil {
		s.recorder.ObserveAuthEvent(string(ev.Kind))
	}
}

// MountRoutes registers the entry and logout endpoints.
func (s *Shell) MountRoutes(r chi.Router) {
	r.Get("/", s.handleIndex)
	r.Post("/logout", s.handleLogout)
}

// RequireUser redirects anonymous requests to the login page and exposes the
// signed-in user to the wrapped handler.
func (s *Shell) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		current, err := s.service.CurrentSession(r.Context(), sess)
		if err != nil {
			s.logger.Error("resolve session", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		if current == nil {
			http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), current.User)))
	})
}

func (s *Shell) handleIndex(w http.ResponseWriter, r *http.Request) {
	target := "/auth/login"
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		if current, err := s.service.CurrentSession(r.Context(), sess); err == nil && current != nil {
			target = "/ajuste"
		}
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Shell) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := s.service.SignOut(r.Context(), sess); err != nil {
			s.logger.Warn("sign out", slog.Any("error", err))
		}
		s.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}
