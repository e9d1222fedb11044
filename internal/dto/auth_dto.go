package dto

import (
	"time"

	"serenity/internal/entity"
)

type RegisterRequest struct {
	Name            string `json:"name" validate:"min=3"`
	Email           string `json:"email" validate:"email"`
	Password        string `json:"password" validate:"min=6"`
	ConfirmPassword string `json:"confirmPassword" validate:"min=6,eqfield=Password"`
}

type VerifyOTPRequest struct {
	Email   string `json:"email"`
	OTPCode string `json:"otpCode"`
}

type ResendOTPRequest struct {
	Email string `json:"email"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"min=6"`
}

// ActionResponse is the envelope every auth workflow answers with.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
	Email   string `json:"email,omitempty"`
}

type SignInResponse struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

type SessionResponse struct {
	User *UserResponse `json:"user"`
}

type UserResponse struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Role            string     `json:"role"`
	Verified        bool       `json:"verified"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func UserResponseFromEntity(user *entity.User) UserResponse {
	return UserResponse{
		ID:              user.ID.String(),
		Name:            user.Name,
		Email:           user.Email,
		Role:            string(user.Role),
		Verified:        user.Verified,
		EmailVerifiedAt: user.EmailVerifiedAt,
		CreatedAt:       user.CreatedAt,
	}
}

func Failure(message string) ActionResponse {
	return ActionResponse{Success: false, Message: message}
}
