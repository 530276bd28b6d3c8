package gateway

import (
	"context"
	"net/http"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

const (
	pathRecognizeDevice   = "/api/auth/devices/recognize"
	pathBreachCheck       = "/api/auth/password/breach-check"
	pathPasswordStrength  = "/api/auth/password/strength"
	pathInvitationPreview = "/api/invitations/preview"
	pathInvitations       = "/api/invitations"
	pathInvitationQR      = "/api/invitations/qr"
)

// RecognizeDevice implements port.DeviceRecognizer.
func (c *Client) RecognizeDevice(ctx context.Context, fingerprint string) (*domain.DeviceRecognition, error) {
	var res domain.DeviceRecognition
	body := map[string]string{"fingerprint": fingerprint}
	if err := c.do(ctx, http.MethodPost, pathRecognizeDevice, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CheckBreach implements port.PasswordSecurity.
func (c *Client) CheckBreach(ctx context.Context, password string) (*domain.BreachResult, error) {
	var res domain.BreachResult
	body := map[string]string{"password": password}
	if err := c.do(ctx, http.MethodPost, pathBreachCheck, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ScoreStrength implements port.PasswordSecurity.
func (c *Client) ScoreStrength(ctx context.Context, password string) (*domain.StrengthResult, error) {
	var res domain.StrengthResult
	body := map[string]string{"password": password}
	if err := c.do(ctx, http.MethodPost, pathPasswordStrength, body, &res); err != nil {
		return nil, err
	}
	res.Password = password
	return &res, nil
}

// PreviewInvitation implements port.InvitationService.
func (c *Client) PreviewInvitation(ctx context.Context, basic domain.InviteBasicInfo) (*domain.InvitationPreview, error) {
	var res domain.InvitationPreview
	if err := c.do(ctx, http.MethodPost, pathInvitationPreview, basic, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendInvitation implements port.InvitationService.
func (c *Client) SendInvitation(ctx context.Context, req domain.InvitationRequest) (*domain.InvitationResult, error) {
	var res domain.InvitationResult
	if err := c.do(ctx, http.MethodPost, pathInvitations, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GenerateInvitationQR implements port.InvitationService.
func (c *Client) GenerateInvitationQR(ctx context.Context, basic domain.InviteBasicInfo, expirationDays int) (*domain.QRCode, error) {
	var res domain.QRCode
	body := struct {
		domain.InviteBasicInfo
		ExpirationDays int `json:"expiration_days"`
	}{basic, expirationDays}
	if err := c.do(ctx, http.MethodPost, pathInvitationQR, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
