package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for a wrong dashboard password and for
// invalid or expired tokens.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service issues and validates the owner's dashboard tokens.
type Service interface {
	Login(ctx context.Context, password string) (string, error)
	ValidateToken(ctx context.Context, token string) error
}

type service struct {
	passwordHash []byte // bcrypt hash of the owner's dashboard password
	secret       []byte
}

func NewService(passwordHash, jwtSecret string) Service {
	return &service{passwordHash: []byte(passwordHash), secret: []byte(jwtSecret)}
}

var _ Service = (*service)(nil)

func (s *service) Login(ctx context.Context, password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	claims := jwt.RegisteredClaims{
		Subject:   "owner",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) error {
	tok, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !tok.Valid {
		return ErrInvalidCredentials
	}
	return nil
}
