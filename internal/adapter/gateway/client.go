// Package gateway talks to the remote Auth API over HTTP. One Client
// implements every remote collaborator port: the Auth Gateway, the
// family-admin lookup and the enhanced auth endpoints.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// Config holds the Auth API endpoint settings.
type Config struct {
	BaseURL    string        // e.g. https://api.familyhub.example
	Timeout    time.Duration // per request, 0 = 15s
	SessionKey string        // key under which the session is persisted
}

// Client implements the Auth API ports. The session cookie lives in its
// jar and is attached to every request automatically.
type Client struct {
	baseURL    *url.URL
	sessionKey string
	jar        *resettableJar
	httpClient *http.Client

	mu        sync.Mutex
	expiresAt time.Time
}

// NewClient creates a client for the Auth API at cfg.BaseURL.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("gateway: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("gateway: base url %q must be absolute", cfg.BaseURL)
	}
	jar, err := newResettableJar()
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	key := cfg.SessionKey
	if key == "" {
		key = base.Host
	}
	return &Client{
		baseURL:    base,
		sessionKey: key,
		jar:        jar,
		httpClient: &http.Client{Jar: jar, Timeout: timeout},
	}, nil
}

// errorBody is the error envelope of the Auth API.
type errorBody struct {
	Error   string                       `json:"error"`
	Message string                       `json:"message"`
	Lockout *domain.AccountLockoutStatus `json:"lockout,omitempty"`
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

// do sends a JSON request and decodes a JSON response into out (if non-nil).
// Every failure comes back as *port.AuthError.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &port.AuthError{Kind: port.KindValidation, Message: port.MsgUnknown, Err: fmt.Errorf("gateway: encode %s: %w", path, err)}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return &port.AuthError{Kind: port.KindUnknown, Message: port.MsgUnknown, Err: fmt.Errorf("gateway: create %s request: %w", path, err)}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return port.NetworkError(fmt.Errorf("gateway: %s %s: %w", method, path, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeError(method, path, resp.StatusCode, raw)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return &port.AuthError{Kind: port.KindUnknown, Status: resp.StatusCode, Message: port.MsgUnknown, Err: fmt.Errorf("gateway: decode %s: %w", path, err)}
	}
	return nil
}

// decodeError turns a non-2xx response into a typed error, keeping the
// Auth API's message verbatim.
func decodeError(method, path string, status int, raw []byte) *port.AuthError {
	ae := &port.AuthError{
		Kind:   port.KindForStatus(status),
		Status: status,
		Err:    fmt.Errorf("gateway: %s %s failed (%d)", method, path, status),
	}

	var eb errorBody
	if err := json.Unmarshal(raw, &eb); err == nil {
		ae.Message = eb.Message
		if ae.Message == "" {
			ae.Message = eb.Error
		}
		ae.Lockout = eb.Lockout
	} else if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 200 {
		ae.Message = text
	}

	if ae.Message == "" {
		ae.Message = http.StatusText(status)
	}
	if ae.Kind == port.KindNetwork {
		ae.Message = port.MsgNetwork
	}
	return ae
}

func (c *Client) setExpiry(t time.Time) {
	c.mu.Lock()
	c.expiresAt = t
	c.mu.Unlock()
}

func (c *Client) expiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}
