package domain

import "time"

// AccountLockoutStatus is the structured lockout signal of the enhanced
// login flow.
type AccountLockoutStatus struct {
	Locked            bool      `json:"locked"`
	LockedUntil       time.Time `json:"locked_until,omitzero"`
	RemainingAttempts int       `json:"remaining_attempts"`
	Reason            string    `json:"reason,omitempty"`
}

// DeviceRecognition is the Auth API's verdict on a device fingerprint.
type DeviceRecognition struct {
	Recognized bool      `json:"recognized"`
	RiskScore  float64   `json:"risk_score"`
	LastSeen   time.Time `json:"last_seen,omitzero"`
}

// BreachResult reports whether a candidate password appears in known
// breach corpora.
type BreachResult struct {
	Compromised bool `json:"compromised"`
	Occurrences int  `json:"occurrences"`
}

// StrengthResult is a password strength verdict. Score ranges 0..4.
type StrengthResult struct {
	Password     string   `json:"-"`
	Score        int      `json:"score"`
	Feedback     []string `json:"feedback,omitempty"`
	CrackTime    string   `json:"crack_time,omitempty"`
	IsAcceptable bool     `json:"is_acceptable"`
}

// SecurityQuestion is an optional extra challenge on password reset.
type SecurityQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// SecurityAnswer answers a SecurityQuestion.
type SecurityAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

// PasswordResetRequest asks the Auth API to email a reset link.
type PasswordResetRequest struct {
	Email          string          `json:"email"`
	SecurityAnswer *SecurityAnswer `json:"security_answer,omitempty"`
}

// PasswordResetReceipt is the Auth API's answer to a reset request.
type PasswordResetReceipt struct {
	AttemptsRemaining int       `json:"attempts_remaining"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
}
