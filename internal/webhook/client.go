// Package webhook posts JSON payloads to the workflow automation webhook.
package webhook

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the answer of the webhook, whatever its status.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Endpoint == "" {
		return e.Err.Error()
	}
	return "post " + e.Endpoint + ": " + e.Reason()
}

// Reason describes the failure without the endpoint URL, which carries the
// webhook id and must not reach end users.
func (e *TransportError) Reason() string {
	var urlErr *url.Error
	if errors.As(e.Err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err.Error()
	}
	msg := e.Err.Error()
	if e.Endpoint != "" && strings.Contains(msg, e.Endpoint) {
		return http.StatusText(http.StatusBadGateway)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client posts payloads to a single endpoint.
type Client struct {
	httpClient *resty.Client
	endpoint   string
}

// NewClient builds a Client for endpoint. Requests are bounded by timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	restyClient := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json, text/plain, */*").
		SetTimeout(timeout)
	return &Client{httpClient: restyClient, endpoint: endpoint}
}

// Endpoint returns the URL payloads are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Post sends body as JSON. Any HTTP answer, including 4xx and 5xx, is a
// Response; only failures to obtain one are returned as *TransportError.
func (c *Client) Post(ctx context.Context, body any) (*Response, error) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(body).
		Post(c.endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: err}
	}
	if resp.RawResponse == nil {
		return nil, &TransportError{Endpoint: c.endpoint, Err: errors.New(http.StatusText(http.StatusBadGateway))}
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}
