package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	"github.com/smallbiznis/backoffice/internal/user/domain"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/smallbiznis/backoffice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:   p.Log.Named("user.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	page := pagination.Pagination{Page: req.Page, Limit: req.Limit}.Normalize(pagination.DefaultLimit)

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "all" {
		role = ""
	}
	if role != "" && !validRole(role) {
		return nil, domain.ErrInvalidRole
	}

	filter := domain.ListFilter{
		Role:    role,
		Search:  strings.TrimSpace(req.Search),
		SortBy:  req.SortBy,
		OrderBy: req.OrderBy,
		Page:    page.Page,
		Limit:   page.Limit,
	}

	type listResult struct {
		items []*domain.User
		total int64
	}
	result, err := db.ReadWithRetry(ctx, func(ctx context.Context) (listResult, error) {
		items, total, err := s.repo.List(ctx, filter)
		return listResult{items: items, total: total}, err
	})
	if err != nil {
		return nil, err
	}

	users := make([]domain.Response, 0, len(result.items))
	for _, u := range result.items {
		users = append(users, toResponse(u))
	}
	return &domain.ListResponse{
		Users:      users,
		Pagination: pagination.BuildPageInfo(page, result.total),
	}, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toResponse(u)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateRequest) (*domain.Response, error) {
	u, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len([]rune(name)) < 2 {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Email != nil {
		email, err := NormalizeEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		if email != u.Email {
			existing, err := s.repo.FindByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != u.ID {
				return nil, domain.ErrEmailExists
			}
			fields["email"] = email
		}
	}
	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		if !validRole(role) {
			return nil, domain.ErrInvalidRole
		}
		fields["role"] = role
	}
	if req.Department != nil {
		fields["department"] = strings.TrimSpace(*req.Department)
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.IsActive != nil {
		if !*req.IsActive {
			if err := s.guardSelf(ctx, u.ID); err != nil {
				return nil, err
			}
		}
		fields["is_active"] = *req.IsActive
	}

	return s.apply(ctx, u.ID, fields)
}

func (s *Service) UpdateRole(ctx context.Context, id string, role string) (*domain.Response, error) {
	return s.Update(ctx, id, domain.UpdateRequest{Role: &role})
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	u, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.guardSelf(ctx, u.ID); err != nil {
		return err
	}
	if _, err := s.apply(ctx, u.ID, map[string]any{"is_active": false}); err != nil {
		return err
	}
	s.log.Info("user deactivated", zap.String("user_id", id))
	return nil
}

func (s *Service) Profile(ctx context.Context) (*domain.Response, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return s.Get(ctx, principal.UserID.String())
}

func (s *Service) UpdateProfile(ctx context.Context, req domain.ProfileRequest) (*domain.Response, error) {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if len([]rune(name)) < 2 {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.Phone != nil {
		fields["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Department != nil {
		fields["department"] = strings.TrimSpace(*req.Department)
	}
	if req.Avatar != nil {
		fields["avatar"] = strings.TrimSpace(*req.Avatar)
	}
	if req.Address != nil {
		fields["address"] = datatypes.NewJSONType(*req.Address)
	}

	return s.apply(ctx, principal.UserID.Int64(), fields)
}

func (s *Service) apply(ctx context.Context, id int64, fields map[string]any) (*domain.Response, error) {
	if len(fields) > 0 {
		fields["updated_at"] = s.clock.Now()
		if err := s.repo.Update(ctx, id, fields); err != nil {
			if db.IsDuplicateKeyOn(err, "email") {
				return nil, domain.ErrEmailExists
			}
			return nil, err
		}
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(u)
	return &resp, nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.User, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || userID == 0 {
		return nil, domain.ErrInvalidID
	}
	u, err := db.ReadWithRetry(ctx, func(ctx context.Context) (*domain.User, error) {
		return s.repo.FindByID(ctx, userID.Int64())
	})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (s *Service) guardSelf(ctx context.Context, target int64) error {
	principal, ok := authcontext.PrincipalFromContext(ctx)
	if !ok {
		return domain.ErrUnauthorized
	}
	if principal.UserID.Int64() == target {
		return domain.ErrCannotDeactivateSelf
	}
	return nil
}

// NormalizeEmail validates and lower-cases an address.
func NormalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func validRole(role string) bool {
	return role == authcontext.RoleAdmin || role == authcontext.RoleEmployee
}

func toResponse(u *domain.User) domain.Response {
	return domain.Response{
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
