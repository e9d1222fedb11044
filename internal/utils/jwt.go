package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTManager struct {
	Secret []byte
	Issuer string
	// Now overrides the clock used for expiry checks.
	Now func() time.Time
}

type SessionClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	jwt.RegisteredClaims
}

func (m JWTManager) IssueSessionToken(userID string, claims SessionClaims, issuedAt time.Time, expiresAt time.Time) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    m.Issuer,
		Subject:   userID,
		ID:        claims.SessionID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.Secret)
}

func (m JWTManager) ParseSessionToken(tokenString string) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.Now != nil {
		options = append(options, jwt.WithTimeFunc(m.Now))
	}
	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		return m.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if m.Issuer != "" && claims.Issuer != m.Issuer {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
