package deviceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sethvargo/go-retry"
)

// Defaults applied when Config fields are zero.
const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 2

	retryBaseDelay = 200 * time.Millisecond
	maxBodySize    = 1 << 20
)

// Config configures the device HTTP client.
type Config struct {
	// Timeout bounds a single request attempt.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	// Negative disables retries.
	MaxRetries int

	// Scheme is "http" unless overridden in tests.
	Scheme string
}

// Client performs authenticated JSON requests against Shelly devices.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - SetAuth takes effect for requests started after it returns.
type Client struct {
	http       *http.Client
	scheme     string
	maxRetries int
	baseDelay  time.Duration

	authMu   sync.RWMutex
	username string
	password string
}

// New creates a device client backed by a pooled HTTP transport.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}

	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.Timeout

	return &Client{
		http:       hc,
		scheme:     cfg.Scheme,
		maxRetries: cfg.MaxRetries,
		baseDelay:  retryBaseDelay,
	}
}

// SetAuth sets the basic-auth credentials sent with every request.
// An empty username clears them.
func (c *Client) SetAuth(username, password string) {
	c.authMu.Lock()
	c.username = username
	c.password = password
	c.authMu.Unlock()
}

// HasAuth reports whether credentials are configured.
func (c *Client) HasAuth() bool {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.username != ""
}

func (c *Client) credentials() (string, string) {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.username, c.password
}

// GetJSON requests path on host and decodes the JSON response into out.
//
// Parameters:
//   - ctx: Context for cancellation across all attempts
//   - host: device address, with or without port
//   - path: request path, e.g. "/status"
//   - out: destination for json.Unmarshal; nil discards the body
//
// Returns:
//   - error: ErrUnauthorised, ErrNotFound, ErrUnexpectedStatus or a transport error
func (c *Client) GetJSON(ctx context.Context, host, path string, out any) error {
	if strings.TrimSpace(host) == "" {
		return ErrInvalidHost
	}

	target := url.URL{
		Scheme: c.scheme,
		Host:   host,
		Path:   "/" + strings.TrimPrefix(path, "/"),
	}

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.baseDelay)) //nolint:gosec // clamped non-negative in New

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		b, err := c.do(ctx, target.String())
		if err != nil {
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		return fmt.Errorf("GET %s: %w", target.String(), err)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s: %w", target.String(), err)
	}
	return nil
}

// do performs one attempt, marking transient failures as retryable.
func (c *Client) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if username, password := c.credentials(); username != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorised
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode >= 500:
		return nil, retry.RetryableError(fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode))
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}
