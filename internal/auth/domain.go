package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/evolury/estoque/internal/shared"
	"github.com/evolury/estoque/internal/supabase"
)

// User is the read-only projection of the provider identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Responsible names the user on submitted adjustments: the email when the
// provider knows one, the user id otherwise.
func (u User) Responsible() string {
	if u.Email != "" {
		return u.Email
	}
	return u.ID
}

// Session is the current provider session as seen by this service.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         User
}

// EventKind names a session change.
type EventKind string

const (
	// EventSignedIn follows a successful password sign-in.
	EventSignedIn EventKind = "SIGNED_IN"
	// EventSignedOut follows a sign-out or a refused refresh.
	EventSignedOut EventKind = "SIGNED_OUT"
	// EventTokenRefreshed follows a transparent token refresh.
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is delivered to session change listeners.
type Event struct {
	Kind EventKind
	User User
	At   time.Time
}

// Listener receives session change events.
type Listener func(Event)

// Store is the per-browser state the session projection lives in.
// *shared.Session satisfies it.
type Store interface {
	Get(key string) string
	Set(key, value string)
	Delete(key string)
	SetUser(id string)
}

// IdentityProvider is the subset of the provider API used by the service.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ErrNoUser is returned when the provider accepted the credentials without
// reporting a user.
var ErrNoUser = fmt.Errorf("auth: provider returned no user: %w", shared.ErrInvalidCredentials)

const (
	keyAccessToken  = "auth.access_token"
	keyRefreshToken = "auth.refresh_token"
	keyExpiresAt    = "auth.expires_at"
	keyUserID       = "auth.user_id"
	keyUserEmail    = "auth.user_email"
)

type userContextKey struct{}

// ContextWithUser stores the signed-in user in context.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the signed-in user stored by ContextWithUser.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(userContextKey{}).(User)
	return user, ok
}
