package port

import (
	"context"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
)

// AuthGateway abstracts the remote Auth API. Every method returns an
// *AuthError on failure.
type AuthGateway interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.AuthResult, error)
	Register(ctx context.Context, reg domain.Registration) (*domain.User, error)
	Logout(ctx context.Context) error

	// RefreshToken renews the session carried by the gateway.
	RefreshToken(ctx context.Context) (*domain.TokenInfo, error)

	// CurrentUser fetches the profile of the session owner.
	CurrentUser(ctx context.Context) (*domain.User, error)

	UpdateProfile(ctx context.Context, patch domain.UserPatch) (*domain.User, error)
	ChangePassword(ctx context.Context, change domain.PasswordChange) error
}

// PasswordResetGateway is the subset of the Auth API the reset wizard uses.
type PasswordResetGateway interface {
	RequestPasswordReset(ctx context.Context, req domain.PasswordResetRequest) (*domain.PasswordResetReceipt, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// FamilyAdminLookup answers whether the session owner administers a family.
// Callers treat it as best-effort.
type FamilyAdminLookup interface {
	IsUserFamilyAdmin(ctx context.Context) (bool, error)
}

// DeviceRecognizer looks a device fingerprint up on the Auth API.
type DeviceRecognizer interface {
	RecognizeDevice(ctx context.Context, fingerprint string) (*domain.DeviceRecognition, error)
}

// DeviceIdentity produces the fingerprint of the device running the client.
type DeviceIdentity interface {
	Fingerprint() (string, error)
}

// PasswordSecurity checks candidate passwords.
type PasswordSecurity interface {
	CheckBreach(ctx context.Context, password string) (*domain.BreachResult, error)
	ScoreStrength(ctx context.Context, password string) (*domain.StrengthResult, error)
}

// SecurityQuestions retrieves the optional reset challenge for an account.
type SecurityQuestions interface {
	SecurityQuestion(ctx context.Context, email string) (*domain.SecurityQuestion, error)
}

// InvitationService previews and sends family invitations.
type InvitationService interface {
	PreviewInvitation(ctx context.Context, basic domain.InviteBasicInfo) (*domain.InvitationPreview, error)
	SendInvitation(ctx context.Context, req domain.InvitationRequest) (*domain.InvitationResult, error)
	GenerateInvitationQR(ctx context.Context, basic domain.InviteBasicInfo, expirationDays int) (*domain.QRCode, error)
}
