package adminauth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/frahmantamala/payment-gateway/internal"
)

type Service struct {
	apiKeyHash    string
	tokenSecret   []byte
	tokenDuration time.Duration
	logger        *slog.Logger
}

func NewService(cfg internal.AdminConfig, logger *slog.Logger) *Service {
	duration := cfg.TokenDuration
	if duration <= 0 {
		duration = time.Hour
	}
	return &Service{
		apiKeyHash:    cfg.APIKeyHash,
		tokenSecret:   []byte(cfg.TokenSecret),
		tokenDuration: duration,
		logger:        logger,
	}
}

// Authenticate compares the presented API key against the configured bcrypt
// hash and issues a token on success.
func (s *Service) Authenticate(req LoginRequest) (*TokenResponse, error) {
	if req.AdminID == "" || req.APIKey == "" {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(req.APIKey)); err != nil {
		s.logger.Warn("admin authentication rejected", "admin_id", req.AdminID)
		return nil, ErrInvalidCredentials
	}

	expiresAt := time.Now().Add(s.tokenDuration)
	claims := &Claims{
		AdminID: req.AdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   req.AdminID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.tokenSecret)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin authenticated", "admin_id", req.AdminID, "expires_at", expiresAt)

	return &TokenResponse{
		AccessToken: tokenString,
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken validates an admin JWT and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.tokenSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// HashAPIKey creates a bcrypt hash of an API key; used by the seed command
// to derive the configured hash.
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
