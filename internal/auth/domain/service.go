package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/backoffice/internal/authcontext"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResult, error)
	// Authenticate verifies a bearer token and requires the user to still
	// exist and be active.
	Authenticate(ctx context.Context, rawToken string) (authcontext.Principal, error)
	Me(ctx context.Context) (*userdomain.Response, error)
}

type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResult struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	User      userdomain.Response `json:"user"`
}
