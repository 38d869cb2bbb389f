package staff

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"restaurant-pos/internal/models"
)

const issuer = "restaurant-pos"

// Claims carry the caller identity inside a session token
type Claims struct {
	Name   string      `json:"name"`
	Role   models.Role `json:"role"`
	Branch string      `json:"branch"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for the user and returns it with its expiry
func (t *TokenIssuer) Issue(u models.User) (string, time.Time, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := &Claims{
		Name:   u.Username,
		Role:   u.Role,
		Branch: u.Branch,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies a token and returns the actor it names
func (t *TokenIssuer) Parse(token string) (models.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !parsed.Valid {
		return models.Actor{}, &models.AuthorizationError{Reason: "invalid or expired token"}
	}
	if !claims.Role.Valid() || claims.Subject == "" {
		return models.Actor{}, &models.AuthorizationError{Reason: "token is missing identity claims"}
	}
	return models.Actor{
		ID:     claims.Subject,
		Name:   claims.Name,
		Role:   claims.Role,
		Branch: claims.Branch,
	}, nil
}
