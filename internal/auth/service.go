package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/evolury/estoque/internal/supabase"
)

// refreshMargin renews tokens slightly before the provider rejects them.
const refreshMargin = 30 * time.Second

// Service exposes the session provider contract on top of the identity
// provider and the per-browser store.
type Service struct {
	provider IdentityProvider
	clock    clockwork.Clock
	logger   *slog.Logger
	notifier *notifier
	refresh  singleflight.Group
}

// NewService constructs a new Service.
func NewService(provider IdentityProvider, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, clock: clock, logger: logger, notifier: newNotifier()}
}

// OnSessionChange registers l for session change events until the returned
// subscription is released.
func (s *Service) OnSessionChange(l Listener) *Subscription {
	return s.notifier.subscribe(l)
}

// SignInWithPassword authenticates against the provider and stores the
// session. Provider errors are returned unchanged so their message can be
// shown verbatim.
func (s *Service) SignInWithPassword(ctx context.Context, store Store, email, password string) (*User, error) {
	issued := s.clock.Now()
	sess, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.User == nil || sess.User.ID == "" {
		return nil, ErrNoUser
	}
	current := s.save(store, sess, issued, User{})
	s.notifier.emit(Event{Kind: EventSignedIn, User: current.User, At: s.clock.Now()})
	return &current.User, nil
}

// CurrentSession returns the stored session, or nil when signed out. Tokens
// close to expiry are refreshed; when the provider refuses, the session is
// cleared and a sign-out is announced.
func (s *Service) CurrentSession(ctx context.Context, store Store) (*Session, error) {
	current, ok := load(store)
	if !ok {
		return nil, nil
	}
	if s.clock.Now().Add(refreshMargin).Before(current.ExpiresAt) {
		return current, nil
	}

	issued := s.clock.Now()
	v, err, _ := s.refresh.Do(current.RefreshToken, func() (any, error) {
		return s.provider.RefreshSession(ctx, current.RefreshToken)
	})
	if err != nil {
		if _, isAPI := supabase.IsAPIError(err); !isAPI {
			// Provider unreachable: keep the user signed in and let the next
			// request try again.
			return nil, fmt.Errorf("refresh session: %w", err)
		}
		s.logger.Info("session refresh refused", slog.String("user_id", current.User.ID), slog.Any("error", err))
		clearStore(store)
		s.notifier.emit(Event{Kind: EventSignedOut, User: current.User, At: s.clock.Now()})
		return nil, nil
	}
	refreshed := s.save(store, v.(*supabase.Session), issued, current.User)
	s.notifier.emit(Event{Kind: EventTokenRefreshed, User: refreshed.User, At: s.clock.Now()})
	return refreshed, nil
}

// SignOut revokes the provider session and clears the local projection.
// Provider failures are logged; the local state is cleared regardless.
func (s *Service) SignOut(ctx context.Context, store Store) error {
	current, ok := load(store)
	if !ok {
		return nil
	}
	var err error
	if current.AccessToken != "" {
		if err = s.provider.SignOut(ctx, current.AccessToken); err != nil {
			s.logger.Warn("provider sign out", slog.String("user_id", current.User.ID), slog.Any("error", err))
		}
	}
	clearStore(store)
	s.notifier.emit(Event{Kind: EventSignedOut, User: current.User, At: s.clock.Now()})
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) {
		// An already revoked token is as good as signed out.
		return nil
	}
	return err
}

func (s *Service) save(store Store, sess *supabase.Session, issued time.Time, previous User) *Session {
	user := previous
	if sess.User != nil && sess.User.ID != "" {
		user = User{ID: sess.User.ID, Email: sess.User.Email}
	}
	current := &Session{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    sess.Expiry(issued),
		User:         user,
	}
	store.Set(keyAccessToken, current.AccessToken)
	store.Set(keyRefreshToken, current.RefreshToken)
	store.Set(keyExpiresAt, strconv.FormatInt(current.ExpiresAt.Unix(), 10))
	store.Set(keyUserID, user.ID)
	store.Set(keyUserEmail, user.Email)
	store.SetUser(user.ID)
	return current
}

func load(store Store) (*Session, bool) {
	if store == nil {
		return nil, false
	}
	userID := store.Get(keyUserID)
	if userID == "" {
		return nil, false
	}
	expires, _ := strconv.ParseInt(store.Get(keyExpiresAt), 10, 64)
	return &Session{
		AccessToken:  store.Get(keyAccessToken),
		RefreshToken: store.Get(keyRefreshToken),
		ExpiresAt:    time.Unix(expires, 0),
		User:         User{ID: userID, Email: store.Get(keyUserEmail)},
	}, true
}

func clearStore(store Store) {
	for _, key := range []string{keyAccessToken, keyRefreshToken, keyExpiresAt, keyUserID, keyUserEmail} {
		store.Delete(key)
	}
	store.SetUser("")
}
