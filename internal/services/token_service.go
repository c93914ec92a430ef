package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/robotrelay/internal/clock"
)

const ingestScope = "ingest"

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokensDisabled  = errors.New("token signing secret not configured")
	ErrMissingProducer = errors.New("producer name is required")
)

// TokenService issues and verifies the bearer tokens telemetry producers present
// when posting samples.
type TokenService struct {
	secret string
	expiry time.Duration
	clock  clock.Clock
}

type ProducerClaims struct {
	Producer string
	TokenID  string
}

func NewTokenService(secret string, expiry time.Duration, clk clock.Clock) *TokenService {
	return &TokenService{secret: secret, expiry: expiry, clock: clk}
}

// Enabled reports whether producers must authenticate.
func (s *TokenService) Enabled() bool {
	return s.secret != ""
}

func (s *TokenService) IssueProducerToken(producer string) (string, time.Time, error) {
	if !s.Enabled() {
		return "", time.Time{}, ErrTokensDisabled
	}
	if producer == "" {
		return "", time.Time{}, ErrMissingProducer
	}

	now := s.clock.Now()
	expiresAt := now.Add(s.expiry)
	claims := jwt.MapClaims{
		"sub":   producer,
		"jti":   uuid.New().String(),
		"scope": ingestScope,
		"exp":   expiresAt.Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *TokenService) VerifyToken(tokenString string) (*ProducerClaims, error) {
	if !s.Enabled() {
		return nil, ErrTokensDisabled
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	}, jwt.WithTimeFunc(s.clock.Now), jwt.WithExpirationRequired())

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if scope, _ := claims["scope"].(string); scope != ingestScope {
		return nil, ErrInvalidToken
	}

	producer, ok := claims["sub"].(string)
	if !ok || producer == "" {
		return nil, ErrInvalidToken
	}
	tokenID, _ := claims["jti"].(string)

	return &ProducerClaims{Producer: producer, TokenID: tokenID}, nil
}
