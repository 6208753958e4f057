// Package fetcher retrieves JSON resources over HTTP or from a local public directory.
// It never retries; falling back to another source is the caller's decision.
package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/woozymasta/geodash/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// Mode mirrors the browser request mode chosen for a URL.
type Mode string

const (
	// ModeCORS is used for absolute, cross-origin URLs.
	ModeCORS Mode = "cors"
	// ModeSameOrigin is used for relative URLs served next to the application.
	ModeSameOrigin Mode = "same-origin"
)

var (
	ErrEmptyURL      = errors.New("empty url")
	ErrMalformedJSON = errors.New("malformed json")
	ErrNoOrigin      = errors.New("relative url without base url or public dir")
)

// FetchError reports a failed retrieval: network error, non-2xx status or malformed body.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ModeFor selects CORS for absolute URLs and same-origin for everything else.
func ModeFor(rawURL string) Mode {
	if u, err := url.Parse(rawURL); err == nil && u.IsAbs() {
		return ModeCORS
	}
	return ModeSameOrigin
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// BaseURL resolves same-origin URLs when set.
	BaseURL string
	// PublicDir serves same-origin URLs from disk when BaseURL is empty.
	PublicDir string
	// Origin is sent on CORS requests.
	Origin    string
	UserAgent string
	// BreakerFailures opens a per-host circuit after that many consecutive failures.
	// Zero disables the breaker.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	opts Options
	http *http.Client

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

// New returns a Client. A nil HTTPClient gets a 30s timeout client.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	return &Client{
		opts:     opts,
		http:     hc,
		breakers: make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// Fetch retrieves rawURL and returns the body once it is known to be valid JSON.
func (c *Client) Fetch(ctx context.Context, rawURL string, mode Mode) ([]byte, error) {
	if rawURL == "" {
		return nil, &FetchError{Err: ErrEmptyURL}
	}

	start := time.Now()
	body, err := c.fetch(ctx, rawURL, mode)
	metrics.FetchDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.FetchRequestsTotal.WithLabelValues(string(mode), outcome).Inc()

	log.Debug().
		Str("url", rawURL).
		Str("mode", string(mode)).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Err(err).
		Msg("Source fetched")

	return body, err
}

func (c *Client) fetch(ctx context.Context, rawURL string, mode Mode) ([]byte, error) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if !target.IsAbs() {
		switch {
		case c.opts.BaseURL != "":
			base, err := url.Parse(c.opts.BaseURL)
			if err != nil {
				return nil, &FetchError{URL: rawURL, Err: err}
			}
			target = base.ResolveReference(target)
		case c.opts.PublicDir != "":
			return c.readLocal(rawURL, target.Path)
		default:
			return nil, &FetchError{URL: rawURL, Err: ErrNoOrigin}
		}
	}

	breaker := c.breaker(target.Host)
	if breaker == nil {
		return c.get(ctx, target.String(), mode)
	}

	body, err := breaker.Execute(func() ([]byte, error) {
		return c.get(ctx, target.String(), mode)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	return body, err
}

func (c *Client) get(ctx context.Context, target string, mode Mode) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Sec-Fetch-Mode", string(mode))
	if mode == ModeCORS && c.opts.Origin != "" {
		req.Header.Set("Origin", c.opts.Origin)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: target, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: err}
	}
	if !json.Valid(body) {
		return nil, &FetchError{URL: target, Status: resp.StatusCode, Err: ErrMalformedJSON}
	}

	return body, nil
}

// readLocal serves a same-origin path from the public directory.
func (c *Client) readLocal(rawURL, p string) ([]byte, error) {
	name := path.Clean(strings.TrimPrefix(p, "/"))
	if !fs.ValidPath(name) || name == "." {
		return nil, &FetchError{URL: rawURL, Status: http.StatusBadRequest, Err: fs.ErrInvalid}
	}

	body, err := fs.ReadFile(os.DirFS(c.opts.PublicDir), name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		return nil, &FetchError{URL: rawURL, Status: status, Err: err}
	}
	if !json.Valid(body) {
		return nil, &FetchError{URL: rawURL, Status: http.StatusOK, Err: ErrMalformedJSON}
	}

	return body, nil
}

func (c *Client) breaker(host string) *gobreaker.CircuitBreaker[[]byte] {
	if c.opts.BreakerFailures == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[host]; ok {
		return cb
	}

	threshold := c.opts.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        host,
		MaxRequests: 1,
		Timeout:     c.opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("host", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Source circuit state changed")
		},
	})
	c.breakers[host] = cb

	return cb
}
