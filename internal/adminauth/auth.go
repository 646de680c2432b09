// Package adminauth authenticates the operators who review manual
// payments. There is a single admin credential: an API key checked against
// a bcrypt hash, exchanged for a short-lived HS256 token.
package adminauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the admin JWT token claims
type Claims struct {
	AdminID string `json:"admin_id"`
	jwt.RegisteredClaims
}

type LoginRequest struct {
	AdminID string `json:"admin_id"`
	APIKey  string `json:"api_key"`
}

type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)
