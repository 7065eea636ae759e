// Package supabase is a small client for the Supabase Auth (GoTrue) REST API.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// User is the identity returned by the provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Session is a token pair issued by the provider.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Expiry returns the absolute expiry of the access token. Older servers only
// send expires_in, which is counted from issuedAt.
func (s *Session) Expiry(issuedAt time.Time) time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return issuedAt.Add(time.Duration(s.ExpiresIn) * time.Second)
}

// APIError is an error answer of the provider.
type APIError struct {
	Status           int    `json:"-"`
	Code             any    `json:"code,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	ErrorText        string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	MessageText      string `json:"message,omitempty"`
}

// Message returns the human readable text, as the provider worded it.
func (e *APIError) Message() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.MessageText, e.ErrorText} {
		if s != "" {
			return s
		}
	}
	return http.StatusText(e.Status)
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase auth: status %d: %s", e.Status, e.Message())
}

// IsAPIError reports whether err carries a provider answer.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Client talks to /auth/v1 of a Supabase project.
type Client struct {
	httpClient *resty.Client
}

// NewClient builds a Client for the project URL using its public anon key.
func NewClient(projectURL, anonKey string, timeout time.Duration) *Client {
	base := strings.TrimSuffix(projectURL, "/") + "/auth/v1"
	restyClient := resty.New().
		SetBaseURL(base).
		SetHeader("apikey", anonKey).
		SetHeader("Authorization", "Bearer "+anonKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &Client{httpClient: restyClient}
}

// SignInWithPassword exchanges email and password for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", map[string]string{"email": email, "password": password})
}

// RefreshSession exchanges a refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "refresh_token", map[string]string{"refresh_token": refreshToken})
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	user := new(User)
	apiErr := new(APIError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(user).
		SetError(apiErr).
		Get("/user")
	if err != nil {
		return nil, fmt.Errorf("supabase get user: %w", err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return nil, apiErr
	}
	return user, nil
}

// SignOut revokes the session of accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	apiErr := new(APIError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetError(apiErr).
		Post("/logout")
	if err != nil {
		return fmt.Errorf("supabase sign out: %w", err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return apiErr
	}
	return nil
}

func (c *Client) token(ctx context.Context, grantType string, body map[string]string) (*Session, error) {
	session := new(Session)
	apiErr := new(APIError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("grant_type", grantType).
		SetBody(body).
		SetResult(session).
		SetError(apiErr).
		Post("/token")
	if err != nil {
		return nil, fmt.Errorf("supabase token %s: %w", grantType, err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		return nil, apiErr
	}
	return session, nil
}
