// Package devproxy forwards /api-n8n requests to the automation webhook while
// developing, so the browser talks to one origin only.
package devproxy

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"regexp"

	"github.com/evolury/estoque/internal/platform/httpx"
)

const (
	// Prefix is the path the proxy is mounted under.
	Prefix = "/api-n8n"

	fallbackHost = "https://n8n.dmiatacado.com.br"
	fallbackPath = "/fallback/webhook-default"
)

var webhookPattern = regexp.MustCompile(`^(https?://[^/]+)(.*)`)

// Target is the resolved webhook location.
type Target struct {
	Host     string
	Path     string
	Fallback bool
}

// URL joins host and path back into the webhook URL.
func (t Target) URL() string {
	return t.Host + t.Path
}

// ResolveTarget splits the configured webhook URL into host and path. An empty
// value uses the default webhook; a malformed one logs an error and falls
// back to it too.
func ResolveTarget(fullURL string, logger *slog.Logger) Target {
	if logger == nil {
		logger = slog.Default()
	}
	target := Target{Host: fallbackHost, Path: fallbackPath, Fallback: true}
	if fullURL == "" {
		fullURL = fallbackHost + fallbackPath
	}
	if m := webhookPattern.FindStringSubmatch(fullURL); m != nil {
		target = Target{Host: m[1], Path: m[2], Fallback: fullURL == fallbackHost+fallbackPath}
	} else {
		logger.Error("N8N_WEBHOOK is not in the expected format, using fallback", slog.String("value", fullURL))
	}
	logger.Info("webhook target", slog.String("target", target.Host), slog.String("rewrite", target.Path))
	return target
}

// NewHandler proxies every request to the target path on the target host.
// The Host header is rewritten to the target.
func NewHandler(target Target, logger *slog.Logger) (http.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	upstream, err := url.Parse(target.Host)
	if err != nil {
		return nil, err
	}
	rewritten, err := url.Parse(target.Path)
	if err != nil {
		return nil, err
	}
	logger.Warn("dev proxy mounted without session or auth checks; set DEV_PROXY_ENABLED=false outside development",
		slog.String("prefix", Prefix),
		slog.String("target", target.Host))
	proxy := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.Out.URL.Path = rewritten.Path
			pr.Out.URL.RawPath = rewritten.RawPath
			pr.Out.URL.RawQuery = rewritten.RawQuery
			pr.SetXForwarded()
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("dev proxy upstream failure", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.Problem(w, http.StatusBadGateway, "Bad Gateway", "webhook unreachable")
		},
	}
	return proxy, nil
}
