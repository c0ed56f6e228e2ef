// Package auth signs and verifies the deep-link tokens embedded in reminder emails.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/PabloGalante/amika-agent/internal/domain"
)

type linkClaims struct {
	GoogleID     string `json:"googleId"`
	Email        string `json:"email"`
	EmailContent string `json:"emailContent"`
	jwt.RegisteredClaims
}

// JWTIssuer is an HS256 domain.LinkIssuer.
type JWTIssuer struct {
	secret []byte
	now    func() time.Time
}

func NewJWTIssuer(secret string) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTIssuer{secret: []byte(secret), now: time.Now}, nil
}

func (j *JWTIssuer) Issue(claims domain.LinkClaims, ttl time.Duration) (string, error) {
	now := j.now()
	c := linkClaims{
		GoogleID:     string(claims.UserID),
		Email:        claims.Email,
		EmailContent: claims.Prompt,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign link token: %w", err)
	}
	return token, nil
}

// Verify checks signature, algorithm and expiry. Every failure is domain.ErrInvalidLink.
func (j *JWTIssuer) Verify(token string) (domain.LinkClaims, error) {
	var c linkClaims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.LinkClaims{}, fmt.Errorf("%w: %v", domain.ErrInvalidLink, err)
	}
	if c.GoogleID == "" {
		return domain.LinkClaims{}, fmt.Errorf("%w: missing googleId", domain.ErrInvalidLink)
	}
	return domain.LinkClaims{UserID: domain.UserID(c.GoogleID), Email: c.Email, Prompt: c.EmailContent}, nil
}
