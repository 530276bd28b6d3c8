package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

// Auth API paths.
const (
	pathLogin             = "/api/auth/login"
	pathRegister          = "/api/auth/register"
	pathLogout            = "/api/auth/logout"
	pathRefresh           = "/api/auth/refresh"
	pathMe                = "/api/auth/me"
	pathProfile           = "/api/auth/profile"
	pathChangePassword    = "/api/auth/change-password"
	pathResetRequest      = "/api/auth/password-reset/request"
	pathResetConfirm      = "/api/auth/password-reset/confirm"
	pathSecurityQuestion  = "/api/auth/security-question"
	pathFamilyAdminStatus = "/api/family/admin-status"
)

// Login implements port.AuthGateway.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error) {
	var res domain.AuthResult
	if err := c.do(ctx, http.MethodPost, pathLogin, creds, &res); err != nil {
		return nil, err
	}
	if !res.Session.Active() {
		res.Session.Mode = domain.SessionCookieManaged
	}
	c.setExpiry(res.Session.ExpiresAt)
	return &res, nil
}

// Register implements port.AuthGateway.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	var res struct {
		User domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, pathRegister, reg, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// Logout implements port.AuthGateway.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, pathLogout, nil, nil)
}

// RefreshToken implements port.AuthGateway.
func (c *Client) RefreshToken(ctx context.Context) (*domain.TokenInfo, error) {
	var res struct {
		Session domain.TokenInfo `json:"session"`
	}
	if err := c.do(ctx, http.MethodPost, pathRefresh, nil, &res); err != nil {
		return nil, err
	}
	info := domain.CookieSession(res.Session.ExpiresAt)
	c.setExpiry(info.ExpiresAt)
	return &info, nil
}

// CurrentUser implements port.AuthGateway.
func (c *Client) CurrentUser(ctx context.Context) (*domain.User, error) {
	var res struct {
		User domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, pathMe, nil, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// UpdateProfile implements port.AuthGateway.
func (c *Client) UpdateProfile(ctx context.Context, patch domain.UserPatch) (*domain.User, error) {
	var res struct {
		User domain.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, pathProfile, patch, &res); err != nil {
		return nil, err
	}
	return &res.User, nil
}

// ChangePassword implements port.AuthGateway.
func (c *Client) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	return c.do(ctx, http.MethodPost, pathChangePassword, change, nil)
}

// RequestPasswordReset implements port.PasswordResetGateway.
func (c *Client) RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) (*domain.PasswordResetReceipt, error) {
	var res domain.PasswordResetReceipt
	if err := c.do(ctx, http.MethodPost, pathResetRequest, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ResetPassword implements port.PasswordResetGateway.
func (c *Client) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{
		"token":    token,
		"password": newPassword,
	}
	return c.do(ctx, http.MethodPost, pathResetConfirm, body, nil)
}

// SecurityQuestion implements port.SecurityQuestions. A nil question with a
// nil error means the account has none configured.
func (c *Client) SecurityQuestion(ctx context.Context, email string) (*domain.SecurityQuestion, error) {
	var res struct {
		Question *domain.SecurityQuestion `json:"question"`
	}
	path := pathSecurityQuestion + "?" + url.Values{"email": {email}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Question, nil
}

// IsUserFamilyAdmin implements port.FamilyAdminLookup.
func (c *Client) IsUserFamilyAdmin(ctx context.Context) (bool, error) {
	var res struct {
		IsAdmin bool `json:"is_admin"`
	}
	if err := c.do(ctx, http.MethodGet, pathFamilyAdminStatus, nil, &res); err != nil {
		return false, err
	}
	return res.IsAdmin, nil
}
