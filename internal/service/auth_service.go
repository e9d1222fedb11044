package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"serenity/internal/dto"
	"serenity/internal/entity"
	"serenity/internal/repository"
	"serenity/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"

const (
	RegisterSuccessMessage = "Registration successful! Please check your email for the verification code."
	VerifySuccessMessage   = "Email verified successfully! You can now sign in."
	ResendSuccessMessage   = "A new verification code has been sent to your email."
	SignInSuccessMessage   = "Signed in successfully"
	SignOutSuccessMessage  = "Signed out successfully"
)

type AuthService struct {
	users        repository.UserRepository
	securityLogs repository.SecurityLogRepository
	otps         *OTPService

	emailSender  EmailSender
	passwordHash PasswordHasher
	sessions     SessionIssuer
	clock        Clock
	validate     *validator.Validate
	log          *logrus.Logger
}

func NewAuthService(
	users repository.UserRepository,
	securityLogs repository.SecurityLogRepository,
	otps *OTPService,
	emailSender EmailSender,
	passwordHash PasswordHasher,
	sessions SessionIssuer,
	clock Clock,
	validate *validator.Validate,
	log *logrus.Logger,
) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthService{
		users:        users,
		securityLogs: securityLogs,
		otps:         otps,
		emailSender:  emailSender,
		passwordHash: passwordHash,
		sessions:     sessions,
		clock:        clock,
		validate:     validate,
		log:          log,
	}
}

func (s *AuthService) Register(ctx context.Context, input dto.RegisterRequest, meta ClientMeta) (*dto.ActionResponse, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = utils.NormalizeEmail(input.Email)
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &entity.User{
		Email:        input.Email,
		Name:         input.Name,
		PasswordHash: hash,
		Role:         entity.UserRoleGuest,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.otps.CreateOTP(ctx, user.Email, &user.ID, entity.OTPPurposeRegistration)
	if err != nil {
		s.compensateRegistration(ctx, user, false, meta, err)
		return nil, fmt.Errorf("%w: %v", ErrOTPCreation, err)
	}

	if err := s.sendVerificationCode(ctx, user, code); err != nil {
		s.compensateRegistration(ctx, user, true, meta, err)
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.Registered, map[string]any{"email": utils.MaskEmail(user.Email)})
	s.log.WithFields(logrus.Fields{"user_id": user.ID, "email": utils.MaskEmail(user.Email)}).Info("user registered")

	return &dto.ActionResponse{
		Success: true,
		Message: RegisterSuccessMessage,
		UserID:  user.ID.String(),
		Email:   user.Email,
	}, nil
}

func (s *AuthService) VerifyRegistrationOTP(ctx context.Context, input dto.VerifyOTPRequest, meta ClientMeta) (*dto.ActionResponse, error) {
	email := utils.NormalizeEmail(input.Email)
	code := strings.TrimSpace(input.OTPCode)
	if email == "" || code == "" {
		return nil, &MissingFieldError{Message: "Email and OTP code are required"}
	}

	result, err := s.otps.ValidateOTP(ctx, email, code, entity.OTPPurposeRegistration)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, ErrInvalidOTP
	}

	var user *entity.User
	if result.UserID != nil {
		user, err = s.users.FindByID(ctx, *result.UserID)
	} else {
		user, err = s.users.FindByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	updated, err := s.users.MarkVerified(ctx, user.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	if updated {
		s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.EmailVerified, nil)
		s.log.WithField("user_id", user.ID).Info("email verified")
	}

	return &dto.ActionResponse{Success: true, Message: VerifySuccessMessage}, nil
}

func (s *AuthService) ResendOTP(ctx context.Context, input dto.ResendOTPRequest, meta ClientMeta) (*dto.ActionResponse, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" {
		return nil, &MissingFieldError{Message: "Email is required"}
	}

	allowed, err := s.otps.CanRequestOTP(ctx, email, entity.OTPPurposeRegistration)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Verified {
		return nil, ErrAlreadyVerified
	}

	code, err := s.otps.CreateOTP(ctx, user.Email, &user.ID, entity.OTPPurposeRegistration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPCreation, err)
	}
	if err := s.sendVerificationCode(ctx, user, code); err != nil {
		s.log.WithError(err).WithField("email", utils.MaskEmail(user.Email)).Warn("resend verification email failed")
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.OTPResent, nil)
	return &dto.ActionResponse{Success: true, Message: ResendSuccessMessage}, nil
}

// SignIn checks existence, then verification, then the password. Errors from
// the session issuer come back wrapped in *SessionError.
func (s *AuthService) SignIn(ctx context.Context, input dto.SignInRequest, meta ClientMeta) (*dto.SignInResponse, error) {
	input.Email = utils.NormalizeEmail(input.Email)
	if err := validateInput(s.validate, input); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		s.logSecurity(ctx, nil, meta.IPAddress, entity.LoginFailed, map[string]any{"email": utils.MaskEmail(input.Email)})
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.LoginUnverified, nil)
		return nil, ErrUnverifiedAccount
	}

	if !s.passwordHash.Verify(user.PasswordHash, input.Password) {
		s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.LoginFailed, nil)
		return nil, ErrInvalidCredentials
	}

	if s.sessions == nil {
		return nil, &SessionError{Err: ErrSessionNotAvailable}
	}
	issued, err := s.sessions.IssueSession(ctx, *user, meta)
	if err != nil {
		return nil, &SessionError{Err: err}
	}

	s.logSecurity(ctx, &user.ID, meta.IPAddress, entity.LoginSuccess, map[string]any{"session_id": issued.SessionID.String()})

	return &dto.SignInResponse{
		Success:   true,
		Message:   SignInSuccessMessage,
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
		User:      dto.UserResponseFromEntity(user),
	}, nil
}

func (s *AuthService) SignOut(ctx context.Context, token string, meta ClientMeta) error {
	if s.sessions == nil {
		return ErrSessionNotAvailable
	}
	session, err := s.sessions.RevokeSession(ctx, token)
	if err != nil {
		return err
	}
	s.logSecurity(ctx, &session.UserID, meta.IPAddress, entity.Logout, map[string]any{"session_id": session.ID.String()})
	return nil
}

func (s *AuthService) CurrentUser(ctx context.Context, token string) (*entity.User, error) {
	if s.sessions == nil {
		return nil, ErrSessionNotAvailable
	}
	user, _, err := s.sessions.VerifySession(ctx, token)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) sendVerificationCode(ctx context.Context, user *entity.User, code string) error {
	if s.emailSender == nil {
		return ErrEmailNotConfigured
	}
	message, err := BuildVerificationEmail(user.Email, user.Name, code, s.otps.TTL(), s.now())
	if err != nil {
		return err
	}
	return s.emailSender.SendEmail(ctx, message)
}

// compensateRegistration removes what a failed registration left behind so
// the address can register again. It runs even if ctx is already cancelled.
func (s *AuthService) compensateRegistration(ctx context.Context, user *entity.User, withOTPs bool, meta ClientMeta, cause error) {
	ctx = context.WithoutCancel(ctx)
	entry := s.log.WithFields(logrus.Fields{
		"user_id": user.ID,
		"email":   utils.MaskEmail(user.Email),
		"cause":   cause.Error(),
	})

	if withOTPs {
		if err := s.otps.DiscardCodes(ctx, user.Email, entity.OTPPurposeRegistration); err != nil {
			entry.WithError(err).Error("compensation: delete otps failed")
		}
	}
	if err := s.users.Delete(ctx, user.ID); err != nil {
		entry.WithError(err).Error("compensation: delete user failed")
		return
	}

	entry.Warn("registration rolled back")
	s.logSecurity(ctx, nil, meta.IPAddress, entity.RegistrationCompensated, map[string]any{
		"email": utils.MaskEmail(user.Email),
		"cause": cause.Error(),
	})
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	userID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) {
	if s.securityLogs == nil {
		return
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			s.log.WithError(err).Warn("security log metadata")
			return
		}
		payload = datatypes.JSON(bytes)
	}

	record := &entity.SecurityLog{
		UserID:    userID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
		CreatedAt: s.now(),
	}
	if err := s.securityLogs.Log(ctx, record); err != nil {
		s.log.WithError(err).WithField("action", action).Warn("security log write failed")
	}
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}
