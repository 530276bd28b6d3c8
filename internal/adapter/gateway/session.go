package gateway

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

// resettableJar is a cookie jar that can be emptied while requests are in
// flight.
type resettableJar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
}

func newResettableJar() (*resettableJar, error) {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: create cookie jar: %w", err)
	}
	return &resettableJar{inner: inner}, nil
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.inner.SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

func (j *resettableJar) reset() {
	inner, _ := cookiejar.New(nil)
	j.mu.Lock()
	j.inner = inner
	j.mu.Unlock()
}

// Snapshot implements port.SessionCarrier.
func (c *Client) Snapshot() domain.PersistedSession {
	cookies := c.jar.Cookies(c.baseURL)
	stored := make([]domain.StoredCookie, 0, len(cookies))
	for _, ck := range cookies {
		stored = append(stored, domain.StoredCookie{
			Name:     ck.Name,
			Value:    ck.Value,
			Path:     "/",
			HTTPOnly: true,
			Secure:   c.baseURL.Scheme == "https",
		})
	}
	return domain.PersistedSession{
		Key:       c.sessionKey,
		Cookies:   stored,
		ExpiresAt: c.expiry(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Restore implements port.SessionCarrier.
func (c *Client) Restore(s domain.PersistedSession) {
	cookies := make([]*http.Cookie, 0, len(s.Cookies))
	for _, sc := range s.Cookies {
		path := sc.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, &http.Cookie{
			Name:     sc.Name,
			Value:    sc.Value,
			Path:     path,
			Expires:  sc.Expires,
			Secure:   sc.Secure,
			HttpOnly: sc.HTTPOnly,
		})
	}
	c.jar.SetCookies(c.baseURL, cookies)
	c.setExpiry(s.ExpiresAt)
}

// Reset implements port.SessionCarrier.
func (c *Client) Reset() {
	c.jar.reset()
	c.setExpiry(time.Time{})
}

// SessionKey is the persistence key of this client's session.
func (c *Client) SessionKey() string {
	return c.sessionKey
}
