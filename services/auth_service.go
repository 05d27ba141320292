package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const tokenLifetime = 24 * time.Hour

// AuthService exchanges the shared admin password for a signed token. There
// is no user account system: one password guards the whole admin surface.
type AuthService interface {
	Login(ctx context.Context, password string) (string, error)
}

type authService struct {
	adminPasswordHash []byte
	jwtSecret         []byte
}

func NewAuthService(adminPasswordHash, jwtSecret string) AuthService {
	return &authService{
		adminPasswordHash: []byte(adminPasswordHash),
		jwtSecret:         []byte(jwtSecret),
	}
}

func (s *authService) Login(_ context.Context, password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.adminPasswordHash, []byte(password)); err != nil {
		return "", ErrAuthInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"role": "admin",
		"iat":  now.Unix(),
		"exp":  now.Add(tokenLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
