package service

import (
	"context"
	"fmt"
	"time"

	"serenity/internal/entity"
	"serenity/internal/repository"
	"serenity/internal/utils"

	"github.com/google/uuid"
)

const DefaultSessionTTL = 30 * 24 * time.Hour

// JWTSessionIssuer signs HS256 tokens that point at a row in the sessions
// table. A token is only honoured while its row is neither revoked nor expired.
type JWTSessionIssuer struct {
	tokens   utils.JWTManager
	sessions repository.SessionRepository
	users    repository.UserRepository
	clock    Clock
	ttl      time.Duration
}

func NewJWTSessionIssuer(
	secret string,
	issuer string,
	ttl time.Duration,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	clock Clock,
) *JWTSessionIssuer {
	if clock == nil {
		clock = RealClock{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &JWTSessionIssuer{
		tokens:   utils.JWTManager{Secret: []byte(secret), Issuer: issuer, Now: clock.Now},
		sessions: sessions,
		users:    users,
		clock:    clock,
		ttl:      ttl,
	}
}

func (i *JWTSessionIssuer) IssueSession(ctx context.Context, user entity.User, meta ClientMeta) (*IssuedSession, error) {
	now := i.clock.Now()
	session := &entity.Session{
		UserID:    user.ID,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		ExpiresAt: now.Add(i.ttl),
		CreatedAt: now,
	}
	if err := i.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := i.tokens.IssueSessionToken(user.ID.String(), utils.SessionClaims{
		SessionID: session.ID.String(),
		Role:      string(user.Role),
		Email:     user.Email,
		Name:      user.Name,
	}, now, session.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session token: %w", err)
	}

	return &IssuedSession{
		Token:     token,
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (i *JWTSessionIssuer) VerifySession(ctx context.Context, token string) (*entity.User, *entity.Session, error) {
	session, err := i.activeSession(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	user, err := i.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidSession
	}
	return user, session, nil
}

func (i *JWTSessionIssuer) RevokeSession(ctx context.Context, token string) (*entity.Session, error) {
	session, err := i.activeSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := i.sessions.Revoke(ctx, session.ID, i.clock.Now()); err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	return session, nil
}

func (i *JWTSessionIssuer) activeSession(ctx context.Context, token string) (*entity.Session, error) {
	claims, err := i.tokens.ParseSessionToken(token)
	if err != nil {
		return nil, ErrInvalidSession
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, ErrInvalidSession
	}
	session, err := i.sessions.FindActive(ctx, sessionID, i.clock.Now())
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID.String() != claims.Subject {
		return nil, ErrInvalidSession
	}
	return session, nil
}
