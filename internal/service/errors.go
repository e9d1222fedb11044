package service

import "errors"

// The text of each sentinel is the message shown to the caller.
var (
	ErrMissingField        = errors.New("Required fields are missing")
	ErrDuplicateEmail      = errors.New("User with this email already exists")
	ErrEmailDelivery       = errors.New("Failed to send verification email. Please try again.")
	ErrOTPCreation         = errors.New("Failed to create verification code. Please try again.")
	ErrRateLimited         = errors.New("Please wait 60 seconds before requesting another code")
	ErrUserNotFound        = errors.New("User not found")
	ErrAlreadyVerified     = errors.New("Email is already verified")
	ErrInvalidOTP          = errors.New("Invalid or expired OTP code")
	ErrUnverifiedAccount   = errors.New("Please verify your email before signing in. Check your inbox for the verification code.")
	ErrInvalidCredentials  = errors.New("Invalid email or password")
	ErrInvalidSession      = errors.New("Invalid or expired session")
	ErrEmailNotConfigured  = errors.New("email sender not configured")
	ErrSessionNotAvailable = errors.New("session issuer not configured")
)

const GenericErrorMessage = "Something went wrong. Please try again later."

// ValidationError carries the message of the first rule an input broke.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// SessionError marks failures of the session issuer. They are not part of
// the application taxonomy and are passed through untouched.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string {
	return "issue session: " + e.Err.Error()
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

var publicErrors = []error{
	ErrMissingField,
	ErrDuplicateEmail,
	ErrEmailDelivery,
	ErrOTPCreation,
	ErrRateLimited,
	ErrUserNotFound,
	ErrAlreadyVerified,
	ErrInvalidOTP,
	ErrUnverifiedAccount,
	ErrInvalidCredentials,
	ErrInvalidSession,
}

// PublicMessage translates a workflow error into the text a caller may see.
// Anything outside the taxonomy collapses to GenericErrorMessage.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	var missing *MissingFieldError
	if errors.As(err, &missing) {
		return missing.Message
	}
	for _, target := range publicErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return GenericErrorMessage
}

// IsApplicationError reports whether err belongs to the workflow taxonomy.
func IsApplicationError(err error) bool {
	if err == nil {
		return false
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return true
	}
	for _, target := range publicErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// MissingFieldError names the absent inputs; it matches ErrMissingField.
type MissingFieldError struct {
	Message string
}

func (e *MissingFieldError) Error() string {
	return e.Message
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}
