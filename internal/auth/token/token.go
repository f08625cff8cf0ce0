package token

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v4"
	"github.com/smallbiznis/backoffice/internal/auth/domain"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/config"
)

const issuer = "backoffice"

// Claims carries the user id and role of a bearer token.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HS256 bearer tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewManager(secret string, ttl time.Duration, clk clock.Clock) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl, clock: clk}
}

// ProvideManager builds a Manager from the application config.
func ProvideManager(cfg config.Config, clk clock.Clock) (*Manager, error) {
	if cfg.AuthJWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("AUTH_JWT_SECRET is required in production")
		}
		cfg.AuthJWTSecret = "backoffice-dev-secret"
	}
	return NewManager(cfg.AuthJWTSecret, cfg.AuthTokenTTL, clk), nil
}

func (m *Manager) Issue(p authcontext.Principal) (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		UserID: p.UserID.String(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   p.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry against the manager's clock.
func (m *Manager) Parse(raw string) (authcontext.Principal, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}); err != nil {
		return authcontext.Principal{}, domain.ErrInvalidToken
	}

	now := m.clock.Now()
	if !claims.VerifyExpiresAt(now, true) {
		return authcontext.Principal{}, domain.ErrExpiredToken
	}
	if !claims.VerifyNotBefore(now, false) || !claims.VerifyIssuer(issuer, true) {
		return authcontext.Principal{}, domain.ErrInvalidToken
	}

	id, err := snowflake.ParseString(claims.UserID)
	if err != nil || id == 0 {
		return authcontext.Principal{}, domain.ErrInvalidToken
	}
	return authcontext.Principal{UserID: id, Role: claims.Role}, nil
}
