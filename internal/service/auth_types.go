package service

import (
	"context"
	"time"

	"serenity/internal/entity"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

type EmailSender interface {
	SendEmail(ctx context.Context, message EmailMessage) error
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash string, password string) bool
}

// ClientMeta describes the caller of a workflow for audit and session rows.
type ClientMeta struct {
	IPAddress *string
	UserAgent *string
}

type IssuedSession struct {
	Token     string
	SessionID uuid.UUID
	ExpiresAt time.Time
}

// SessionIssuer owns session state; the workflows only hand it a verified user.
type SessionIssuer interface {
	IssueSession(ctx context.Context, user entity.User, meta ClientMeta) (*IssuedSession, error)
	VerifySession(ctx context.Context, token string) (*entity.User, *entity.Session, error)
	RevokeSession(ctx context.Context, token string) (*entity.Session, error)
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

const DefaultBcryptCost = 10

type BcryptPasswordHasher struct {
	Cost int
}

func (h BcryptPasswordHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptPasswordHasher) Verify(hash string, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
