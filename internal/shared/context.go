package shared

import (
	"context"
	"net/http"
)

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// PopFlash pops the pending flash of the request session, if any.
func PopFlash(r *http.Request) *FlashMessage {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		return nil
	}
	return sess.PopFlash()
}
