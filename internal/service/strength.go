package service

import (
	"context"
	"sync"

	"github.com/arturoeanton/familyhub-auth/internal/domain"
	"github.com/arturoeanton/familyhub-auth/internal/effect"
	"github.com/arturoeanton/familyhub-auth/internal/port"
)

// StrengthChecker scores passwords as they are typed. Each check cancels
// the one before it and only the newest input's verdict is kept.
type StrengthChecker struct {
	security port.PasswordSecurity
	minScore int

	latest effect.Latest
	mu     sync.Mutex
	last   *domain.StrengthResult
}

// NewStrengthChecker creates a checker. minScore (0..4) is the lowest
// score accepted for a new password.
func NewStrengthChecker(security port.PasswordSecurity, minScore int) *StrengthChecker {
	return &StrengthChecker{security: security, minScore: minScore}
}

// MinScore returns the configured acceptance threshold.
func (s *StrengthChecker) MinScore() int {
	return s.minScore
}

// Check scores password. stale is true when a newer Check started while
// this one was running; its result is then returned but not stored.
func (s *StrengthChecker) Check(ctx context.Context, password string) (res *domain.StrengthResult, stale bool, err error) {
	ctx, token := s.latest.Begin(ctx)
	res, err = s.security.ScoreStrength(ctx, password)
	if err != nil {
		if !s.latest.IsCurrent(token) {
			return nil, true, err
		}
		return nil, false, err
	}
	if res.Password == "" {
		res.Password = password
	}
	res.IsAcceptable = res.Score >= s.minScore

	applied := s.latest.Apply(token, func() {
		s.mu.Lock()
		s.last = res
		s.mu.Unlock()
	})
	return res, !applied, nil
}

// Last returns the most recent current verdict, or nil.
func (s *StrengthChecker) Last() *domain.StrengthResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	c := *s.last
	return &c
}

// Reset forgets the stored verdict and makes in-flight checks stale.
func (s *StrengthChecker) Reset() {
	s.latest.Invalidate()
	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()
}

// Acceptable runs the new-password guard: the breach check comes first and
// a breached password fails regardless of its score. Any collaborator
// failure blocks the password.
func (s *StrengthChecker) Acceptable(ctx context.Context, password string) error {
	breach, err := s.security.CheckBreach(ctx, password)
	if err != nil {
		return err
	}
	if breach.Compromised {
		return port.ErrPasswordCompromised
	}
	res, err := s.security.ScoreStrength(ctx, password)
	if err != nil {
		return err
	}
	if res.Score < s.minScore {
		return port.ErrPasswordTooWeak
	}
	return nil
}
