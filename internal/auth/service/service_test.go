package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/backoffice/internal/auth/domain"
	"github.com/smallbiznis/backoffice/internal/auth/token"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/clock"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
	userrepo "github.com/smallbiznis/backoffice/internal/user/repository"
	"github.com/smallbiznis/backoffice/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, userdomain.Repository) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&userdomain.User{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	users := userrepo.New(conn)
	svc := New(Params{
		Log:    zap.NewNop(),
		GenID:  node,
		Users:  users,
		Tokens: token.NewManager("test-secret", time.Hour, fc),
		Clock:  fc,
	}).(*Service)
	return svc, users
}

func register(t *testing.T, svc *Service, email string) *domain.AuthResult {
	t.Helper()
	res, err := svc.Register(context.Background(), domain.RegisterRequest{
		Name:     "Alice Clerk",
		Email:    email,
		Password: "correct-password",
	})
	require.NoError(t, err)
	return res
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res := register(t, svc, "Alice@Example.com")
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, authcontext.RoleEmployee, res.User.Role)
	assert.NotEmpty(t, res.Token)

	_, err := svc.Register(ctx, domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "another-pass"})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	_, err = svc.Register(ctx, domain.RegisterRequest{Name: "Bob", Email: "bob@example.com", Password: "short"})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	_, err = svc.Register(ctx, domain.RegisterRequest{Name: "Bob", Email: "not-an-email", Password: "long-enough"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	t.Run("admin role needs an admin caller", func(t *testing.T) {
		req := domain.RegisterRequest{Name: "Eve", Email: "eve@example.com", Password: "long-enough", Role: "admin"}
		_, err := svc.Register(ctx, req)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		adminCtx := authcontext.WithPrincipal(ctx, authcontext.Principal{UserID: snowflake.ID(1), Role: authcontext.RoleAdmin})
		res, err := svc.Register(adminCtx, req)
		require.NoError(t, err)
		assert.Equal(t, authcontext.RoleAdmin, res.User.Role)
	})
}

func TestLogin(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	registered := register(t, svc, "alice@example.com")

	_, err := svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "nobody@example.com", Password: "correct-password"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	res, err := svc.Login(ctx, domain.LoginRequest{Email: "ALICE@example.com", Password: "correct-password"})
	require.NoError(t, err)
	require.NotNil(t, res.User.LastLogin)

	id, err := snowflake.ParseString(registered.User.ID)
	require.NoError(t, err)
	require.NoError(t, users.Update(ctx, id.Int64(), map[string]any{"is_active": false}))

	_, err = svc.Login(ctx, domain.LoginRequest{Email: "alice@example.com", Password: "correct-password"})
	assert.ErrorIs(t, err, domain.ErrUserInactive)
}

func TestAuthenticate(t *testing.T) {
	svc, users := newTestService(t)
	ctx := context.Background()
	res := register(t, svc, "alice@example.com")

	principal, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, principal.UserID.String())
	assert.Equal(t, authcontext.RoleEmployee, principal.Role)

	me, err := svc.Me(authcontext.WithPrincipal(ctx, principal))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", me.Email)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	require.NoError(t, users.Update(ctx, principal.UserID.Int64(), map[string]any{"is_active": false}))
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, domain.ErrUserInactive)
	assert.True(t, IsAuthError(err))
}
