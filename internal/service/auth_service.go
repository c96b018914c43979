package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"claimflow/internal/config"
	"claimflow/internal/domain"
)

// Claims are the claims of a service token. Every pipeline call is scoped to
// TenantID.
type Claims struct {
	jwt.RegisteredClaims
	TenantID string             `json:"tenant_id"`
	Role     domain.ServiceRole `json:"role"`
}

// AuthService issues and validates service tokens for the workflow engine.
type AuthService interface {
	IssueToken(tenantID, subject string, role domain.ServiceRole, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
}

type authService struct {
	cfg config.JWTConfig
	now func() time.Time
}

// NewAuthService creates a new AuthService implementation.
func NewAuthService(cfg config.JWTConfig) AuthService {
	return &authService{cfg: cfg, now: time.Now}
}

func (s *authService) IssueToken(tenantID, subject string, role domain.ServiceRole, ttl time.Duration) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant is required", domain.ErrInvalidInput)
	}
	if role == "" {
		role = domain.RoleEngine
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TenantID: tenantID,
		Role:     role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.cfg.Audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !token.Valid || claims.TenantID == "" {
		return nil, domain.ErrUnauthorized
	}
	return claims, nil
}
