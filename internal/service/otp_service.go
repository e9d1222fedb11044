package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"serenity/internal/entity"
	"serenity/internal/repository"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/sirupsen/logrus"
)

const (
	DefaultOTPTTL         = 10 * time.Minute
	DefaultResendCooldown = 60 * time.Second
)

var otpSpace = big.NewInt(1_000_000)

type OTPConfig struct {
	TTL            time.Duration
	ResendCooldown time.Duration
}

type OTPValidation struct {
	Valid   bool
	UserID  *uuid.UUID
	Message string
}

type OTPService struct {
	otps   repository.OTPRepository
	clock  Clock
	config OTPConfig
	log    *logrus.Logger
}

func NewOTPService(otps repository.OTPRepository, clock Clock, config OTPConfig, log *logrus.Logger) *OTPService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &OTPService{otps: otps, clock: clock, config: config, log: log}
}

// GenerateCode returns six decimal digits drawn uniformly from crypto/rand.
func (s *OTPService) GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return otp.DigitsSix.Format(int32(n.Int64())), nil
}

// CreateOTP clears used or expired codes for the pair and stores a fresh one.
// Cooldown enforcement is left to the caller.
func (s *OTPService) CreateOTP(ctx context.Context, email string, userID *uuid.UUID, purpose entity.OTPPurpose) (string, error) {
	now := s.now()
	if _, err := s.otps.DeleteStale(ctx, email, purpose, now); err != nil {
		return "", fmt.Errorf("delete stale otps: %w", err)
	}

	code, err := s.GenerateCode()
	if err != nil {
		return "", err
	}

	record := &entity.OTP{
		Code:      code,
		Email:     email,
		UserID:    userID,
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := s.otps.Create(ctx, record); err != nil {
		return "", fmt.Errorf("create otp: %w", err)
	}
	return code, nil
}

// ValidateOTP consumes a matching code. Losing a race on the same code reads
// as an invalid code.
func (s *OTPService) ValidateOTP(ctx context.Context, email string, code string, purpose entity.OTPPurpose) (OTPValidation, error) {
	invalid := OTPValidation{Message: ErrInvalidOTP.Error()}

	record, err := s.otps.FindValid(ctx, email, code, purpose, s.now())
	if err != nil {
		return invalid, fmt.Errorf("find otp: %w", err)
	}
	if record == nil {
		return invalid, nil
	}

	consumed, err := s.otps.MarkUsed(ctx, record.ID)
	if err != nil {
		return invalid, fmt.Errorf("mark otp used: %w", err)
	}
	if !consumed {
		return invalid, nil
	}
	return OTPValidation{Valid: true, UserID: record.UserID}, nil
}

// CanRequestOTP is false while any code for the pair is younger than the
// cooldown, used or not.
func (s *OTPService) CanRequestOTP(ctx context.Context, email string, purpose entity.OTPPurpose) (bool, error) {
	recent, err := s.otps.FindCreatedAfter(ctx, email, purpose, s.now().Add(-s.cooldown()))
	if err != nil {
		return false, fmt.Errorf("find recent otp: %w", err)
	}
	return recent == nil, nil
}

// DiscardCodes drops every code for the pair, valid or not.
func (s *OTPService) DiscardCodes(ctx context.Context, email string, purpose entity.OTPPurpose) error {
	if err := s.otps.DeleteByEmail(ctx, email, purpose); err != nil {
		return fmt.Errorf("discard otps: %w", err)
	}
	return nil
}

func (s *OTPService) CleanupExpired(ctx context.Context) (int64, error) {
	deleted, err := s.otps.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup expired otps: %w", err)
	}
	if deleted > 0 {
		s.log.WithField("deleted", deleted).Info("expired otps removed")
	}
	return deleted, nil
}

func (s *OTPService) TTL() time.Duration {
	return s.ttl()
}

func (s *OTPService) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

func (s *OTPService) ttl() time.Duration {
	if s.config.TTL > 0 {
		return s.config.TTL
	}
	return DefaultOTPTTL
}

func (s *OTPService) cooldown() time.Duration {
	if s.config.ResendCooldown > 0 {
		return s.config.ResendCooldown
	}
	return DefaultResendCooldown
}
