// Package sources defines the provider interface for topic collection and
// the shared types every provider returns.
package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// Item is one collected unit from a source. Immutable once fetched.
type Item struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	URL         string    `json:"url,omitempty"`
	Site        string    `json:"site,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Engagement  int       `json:"engagement,omitempty"`
}

// Text returns the item's searchable text (title plus body).
func (it Item) Text() string {
	if it.Body == "" {
		return it.Title
	}
	return it.Title + "\n" + it.Body
}

// Source fetches items matching a query from one upstream provider.
// Implementations own their HTTP clients and rate limiters; they return
// *StatusError for provider-level failures so callers can classify them.
type Source interface {
	Name() string
	Fetch(ctx context.Context, query string, maxItems int) ([]Item, error)
}

// StatusError is a provider call that failed with an HTTP status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

const defaultUserAgent = "driftwatch/2.x (+https://github.com/driftwatch/driftwatch)"

// NewHTTPClient returns the client source implementations share: a plain
// client with a hard timeout, no transport-level retries. Retrying is the
// collection layer's job and must not happen twice.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// NewRequest builds a GET request with the shared user agent.
func NewRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	return req, nil
}

// SiteOf extracts the registrable domain from a URL for source attribution,
// e.g. "https://blog.sub.example.co.uk/post" -> "example.co.uk".
// Returns "" when no domain can be derived.
func SiteOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	} else {
		host = strings.Split(host, "/")[0]
		host = strings.Split(host, ":")[0]
	}
	if !strings.Contains(host, ".") {
		return ""
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		// Not under a known suffix, keep the bare host.
		return strings.ToLower(host)
	}
	return strings.ToLower(domain)
}
