package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolury/estoque/internal/auth"
	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/supabase"
)

type memoryStore struct {
	mu     sync.Mutex
	values map[string]string
	user   string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}}
}

func (s *memoryStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *memoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *memoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *memoryStore) SetUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = id
}

type stubProvider struct {
	signIn      *supabase.Session
	signInErr   error
	refreshErr  error
	signOutErr  error
	refreshes   atomic.Int32
	signOuts    atomic.Int32
	refreshGate chan struct{}
}

func (p *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	return p.signIn, p.signInErr
}

func (p *stubProvider) RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error) {
	p.refreshes.Add(1)
	if p.refreshGate != nil {
		<-p.refreshGate
	}
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	return &supabase.Session{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
}

func (p *stubProvider) SignOut(ctx context.Context, accessToken string) error {
	p.signOuts.Add(1)
	return p.signOutErr
}

func validSession() *supabase.Session {
	return &supabase.Session{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    3600,
		User:         &supabase.User{ID: "user-1", Email: "ana@loja.com"},
	}
}

type recorder struct {
	mu     sync.Mutex
	events []auth.Event
}

func (r *recorder) listen(ev auth.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []auth.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

var start = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func newService(p *stubProvider) (*auth.Service, *clockwork.FakeClock, *recorder) {
	clock := clockwork.NewFakeClockAt(start)
	svc := auth.NewService(p, clock, nil)
	rec := &recorder{}
	svc.OnSessionChange(rec.listen)
	return svc, clock, rec
}

func TestSignInStoresSession(t *testing.T) {
	svc, _, rec := newService(&stubProvider{signIn: validSession()})
	store := newMemoryStore()

	user, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "user-1", store.user)

	current, err := svc.CurrentSession(context.Background(), store)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "access-1", current.AccessToken)
	assert.Equal(t, start.Add(time.Hour), current.ExpiresAt)
	assert.Equal(t, auth.User{ID: "user-1", Email: "ana@loja.com"}, current.User)
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn}, rec.kinds())
}

func TestSignInProviderErrorIsReturnedUnchanged(t *testing.T) {
	apiErr := &supabase.APIError{Status: http.StatusBadRequest, ErrorDescription: "Invalid login credentials"}
	svc, _, rec := newService(&stubProvider{signInErr: apiErr})

	_, err := svc.SignInWithPassword(context.Background(), newMemoryStore(), "a@b.c", "x")
	assert.Same(t, apiErr, err)
	assert.Empty(t, rec.kinds())
}

func TestSignInWithoutUser(t *testing.T) {
	svc, _, _ := newService(&stubProvider{signIn: &supabase.Session{AccessToken: "t"}})
	_, err := svc.SignInWithPassword(context.Background(), newMemoryStore(), "a@b.c", "x")
	assert.ErrorIs(t, err, auth.ErrNoUser)
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestCurrentSessionSignedOut(t *testing.T) {
	svc, _, _ := newService(&stubProvider{})
	current, err := svc.CurrentSession(context.Background(), newMemoryStore())
	assert.NoError(t, err)
	assert.Nil(t, current)
}

func TestCurrentSessionRefreshesNearExpiry(t *testing.T) {
	provider := &stubProvider{signIn: validSession()}
	svc, clock, rec := newService(provider)
	store := newMemoryStore()
	_, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)

	clock.Advance(time.Hour - 10*time.Second)
	current, err := svc.CurrentSession(context.Background(), store)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "access-2", current.AccessToken)
	assert.Equal(t, "refresh-2", current.RefreshToken)
	// The refresh answer carries no user; the previous one is kept.
	assert.Equal(t, "ana@loja.com", current.User.Email)
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn, auth.EventTokenRefreshed}, rec.kinds())
	assert.EqualValues(t, 1, provider.refreshes.Load())
}

func TestCurrentSessionRefreshRefusedSignsOut(t *testing.T) {
	provider := &stubProvider{signIn: validSession(), refreshErr: &supabase.APIError{Status: http.StatusBadRequest, Msg: "Invalid Refresh Token"}}
	svc, clock, rec := newService(provider)
	store := newMemoryStore()
	_, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	current, err := svc.CurrentSession(context.Background(), store)
	assert.NoError(t, err)
	assert.Nil(t, current)
	assert.Empty(t, store.user)
	assert.Empty(t, store.Get("auth.access_token"))
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn, auth.EventSignedOut}, rec.kinds())
}

func TestCurrentSessionProviderUnreachableKeepsSession(t *testing.T) {
	provider := &stubProvider{signIn: validSession(), refreshErr: errors.New("dial tcp: i/o timeout")}
	svc, clock, rec := newService(provider)
	store := newMemoryStore()
	_, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)
	_, err = svc.CurrentSession(context.Background(), store)
	assert.Error(t, err)
	assert.Equal(t, "user-1", store.user)
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn}, rec.kinds())
}

func TestConcurrentRefreshesShareOneCall(t *testing.T) {
	provider := &stubProvider{signIn: validSession(), refreshGate: make(chan struct{})}
	svc, clock, _ := newService(provider)
	store := newMemoryStore()
	_, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CurrentSession(context.Background(), store)
		}()
	}
	require.Eventually(t, func() bool { return provider.refreshes.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(provider.refreshGate)
	wg.Wait()
	assert.EqualValues(t, 1, provider.refreshes.Load())
}

func TestSignOutClearsEvenWhenProviderFails(t *testing.T) {
	provider := &stubProvider{signIn: validSession(), signOutErr: &supabase.APIError{Status: http.StatusUnauthorized, Msg: "token revoked"}}
	svc, _, rec := newService(provider)
	store := newMemoryStore()
	_, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.SignOut(context.Background(), store))
	assert.EqualValues(t, 1, provider.signOuts.Load())
	assert.Empty(t, store.user)
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn, auth.EventSignedOut}, rec.kinds())

	current, err := svc.CurrentSession(context.Background(), store)
	assert.NoError(t, err)
	assert.Nil(t, current)
}

func TestSignOutTransportErrorIsReported(t *testing.T) {
	provider := &stubProvider{signIn: validSession(), signOutErr: errors.New("connection reset")}
	svc, _, _ := newService(provider)
	store := newMemoryStore()
	_, err := svc.SignInWithPassword(context.Background(), store, "ana@loja.com", "pw")
	require.NoError(t, err)

	assert.Error(t, svc.SignOut(context.Background(), store))
	assert.Empty(t, store.user)
}

func TestUnsubscribedListenerMissesEvents(t *testing.T) {
	svc := auth.NewService(&stubProvider{signIn: validSession()}, clockwork.NewFakeClockAt(start), nil)
	rec := &recorder{}
	sub := svc.OnSessionChange(rec.listen)
	sub.Unsubscribe()
	sub.Unsubscribe()

	_, err := svc.SignInWithPassword(context.Background(), newMemoryStore(), "ana@loja.com", "pw")
	require.NoError(t, err)
	assert.Empty(t, rec.kinds())
}
