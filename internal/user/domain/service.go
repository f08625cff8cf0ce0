package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/backoffice/pkg/db/pagination"
)

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidName          = errors.New("invalid_name")
	ErrInvalidEmail         = errors.New("invalid_email")
	ErrInvalidRole          = errors.New("invalid_role")
	ErrEmailExists          = errors.New("email_exists")
	ErrNotFound             = errors.New("user_not_found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrCannotDeactivateSelf = errors.New("cannot_deactivate_self")
)

type Service interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Response, error)
	UpdateRole(ctx context.Context, id string, role string) (*Response, error)
	// Deactivate is a soft delete; the caller cannot deactivate themselves.
	Deactivate(ctx context.Context, id string) error

	Profile(ctx context.Context) (*Response, error)
	UpdateProfile(ctx context.Context, req ProfileRequest) (*Response, error)
}

type ListRequest struct {
	Search  string
	Role    string
	SortBy  string
	OrderBy string
	Page    int
	Limit   int
}

type UpdateRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	IsActive   *bool   `json:"is_active"`
}

type ProfileRequest struct {
	Name       *string  `json:"name"`
	Phone      *string  `json:"phone"`
	Department *string  `json:"department"`
	Avatar     *string  `json:"avatar"`
	Address    *Address `json:"address"`
}

type Response struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	Avatar     string     `json:"avatar,omitempty"`
	Department string     `json:"department,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Address    Address    `json:"address"`
	IsActive   bool       `json:"is_active"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ListResponse struct {
	Users      []Response          `json:"users"`
	Pagination pagination.PageInfo `json:"pagination"`
}
