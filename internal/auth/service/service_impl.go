package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/auth/domain"
	"github.com/smallbiznis/backoffice/internal/auth/password"
	"github.com/smallbiznis/backoffice/internal/auth/token"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
	usersvc "github.com/smallbiznis/backoffice/internal/user/service"
	"github.com/smallbiznis/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	GenID  *snowflake.Node
	Users  userdomain.Repository
	Tokens *token.Manager
	Clock  clock.Clock
}

type Service struct {
	log    *zap.Logger
	genID  *snowflake.Node
	users  userdomain.Repository
	tokens *token.Manager
	clock  clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("auth.service"),
		genID:  p.GenID,
		users:  p.Users,
		tokens: p.Tokens,
		clock:  p.Clock,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error) {
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) < 2 {
		return nil, domain.ErrInvalidName
	}
	email, err := usersvc.NormalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(req.Password) < password.MinLength {
		return nil, domain.ErrWeakPassword
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	switch role {
	case "":
		role = authcontext.RoleEmployee
	case authcontext.RoleEmployee:
	case authcontext.RoleAdmin:
		caller, ok := authcontext.PrincipalFromContext(ctx)
		if !ok || !caller.IsAdmin() {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrInvalidRole
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	user := &userdomain.User{
		ID:           s.genID.Generate().Int64(),
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		Department:   strings.TrimSpace(req.Department),
		Phone:        strings.TrimSpace(req.Phone),
		IsActive:     true,
		LastLogin:    &now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", snowflake.ID(user.ID).String()),
		zap.String("role", role),
	)
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	email, err := usersvc.NormalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := db.ReadWithRetry(ctx, func(ctx context.Context) (*userdomain.User, error) {
		return s.users.FindByEmail(ctx, email)
	})
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	now := s.clock.Now()
	if err := s.users.Update(ctx, user.ID, map[string]any{"last_login": now}); err != nil {
		return nil, err
	}
	user.LastLogin = &now

	return s.issue(user)
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (authcontext.Principal, error) {
	raw := strings.TrimSpace(rawToken)
	if raw == "" {
		return authcontext.Principal{}, domain.ErrInvalidToken
	}
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return authcontext.Principal{}, err
	}

	user, err := db.ReadWithRetry(ctx, func(ctx context.Context) (*userdomain.User, error) {
		return s.users.FindByID(ctx, claims.UserID.Int64())
	})
	if err != nil {
		return authcontext.Principal{}, err
	}
	if user == nil {
		return authcontext.Principal{}, domain.ErrUserNotFound
	}
	if !user.IsActive {
		return authcontext.Principal{}, domain.ErrUserInactive
	}

	// The stored role wins over the token claim so demotions apply at once.
	return authcontext.Principal{UserID: claims.UserID, Role: user.Role}, nil
}

func (s *Service) Me(ctx context.Context) (*userdomain.Response, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.users.FindByID(ctx, principal.UserID.Int64())
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) issue(user *userdomain.User) (*domain.AuthResult, error) {
	raw, expiresAt, err := s.tokens.Issue(authcontext.Principal{
		UserID: snowflake.ID(user.ID),
		Role:   user.Role,
	})
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{
		Token:     raw,
		ExpiresAt: expiresAt,
		User:      toUserResponse(user),
	}, nil
}

func toUserResponse(u *userdomain.User) userdomain.Response {
	return userdomain.Response{
		ID:         snowflake.ID(u.ID).String(),
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Role,
		Avatar:     u.Avatar,
		Department: u.Department,
		Phone:      u.Phone,
		Address:    u.Address.Data(),
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// IsAuthError reports errors that should surface as 401.
func IsAuthError(err error) bool {
	return errors.Is(err, domain.ErrInvalidToken) ||
		errors.Is(err, domain.ErrExpiredToken) ||
		errors.Is(err, domain.ErrUserNotFound) ||
		errors.Is(err, domain.ErrUserInactive)
}
