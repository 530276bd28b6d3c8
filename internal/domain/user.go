package domain

// User represents the authenticated principal as reported by the Auth API.
type User struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	FamilyID      string `json:"family_id,omitempty"`
	Role          string `json:"role,omitempty"`
	IsFamilyAdmin bool   `json:"is_family_admin"`
}

// Clone returns a copy of u that shares no memory with it.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// UserPatch carries a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	Email         *string `json:"email,omitempty"`
	Name          *string `json:"name,omitempty"`
	AvatarURL     *string `json:"avatar_url,omitempty"`
	FamilyID      *string `json:"family_id,omitempty"`
	Role          *string `json:"role,omitempty"`
	IsFamilyAdmin *bool   `json:"is_family_admin,omitempty"`
}

// FullPatch builds a patch that overwrites every field with u's values.
func FullPatch(u User) UserPatch {
	return UserPatch{
		Email:         &u.Email,
		Name:          &u.Name,
		AvatarURL:     &u.AvatarURL,
		FamilyID:      &u.FamilyID,
		Role:          &u.Role,
		IsFamilyAdmin: &u.IsFamilyAdmin,
	}
}

// Apply returns a copy of u with the patch merged in. The ID never changes.
func (p UserPatch) Apply(u User) User {
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.AvatarURL != nil {
		u.AvatarURL = *p.AvatarURL
	}
	if p.FamilyID != nil {
		u.FamilyID = *p.FamilyID
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsFamilyAdmin != nil {
		u.IsFamilyAdmin = *p.IsFamilyAdmin
	}
	return u
}

// Credentials is the login form payload.
type Credentials struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	RememberMe        bool   `json:"remember_me,omitempty"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// Registration is the sign-up form payload.
type Registration struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
	FamilyName string `json:"family_name,omitempty"`
	InviteCode string `json:"invite_code,omitempty"`
}

// PasswordChange is the authenticated change-password payload.
type PasswordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// AuthResult is what the Auth API returns after a successful login.
type AuthResult struct {
	User    User                  `json:"user"`
	Session TokenInfo             `json:"session"`
	Lockout *AccountLockoutStatus `json:"lockout,omitempty"`
}
