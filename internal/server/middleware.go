package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	obscontext "github.com/smallbiznis/backoffice/internal/observability/context"
)

const (
	contextUserIDKey = "user_id"
	contextRoleKey   = "user_role"

	roleAdmin    = authcontext.RoleAdmin
	roleEmployee = authcontext.RoleEmployee
)

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.attachPrincipal(c, raw); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the principal when a valid token is present and
// otherwise lets the request through anonymously.
func (s *Server) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := s.sessions.ReadToken(c); ok {
			_ = s.attachPrincipal(c, raw)
		}
		c.Next()
	}
}

func (s *Server) attachPrincipal(c *gin.Context, raw string) error {
	principal, err := s.authsvc.Authenticate(c.Request.Context(), raw)
	if err != nil {
		return err
	}

	ctx := authcontext.WithPrincipal(c.Request.Context(), principal)
	ctx = obscontext.WithActor(ctx, principal.Role, principal.UserID.String())
	c.Request = c.Request.WithContext(ctx)

	c.Set(contextUserIDKey, principal.UserID.String())
	c.Set(contextRoleKey, principal.Role)
	return nil
}

func RequireRole(role ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := authcontext.PrincipalFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		for _, allowed := range role {
			if strings.EqualFold(principal.Role, allowed) {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

func (s *Server) RequireRole(role ...string) gin.HandlerFunc {
	return RequireRole(role...)
}

func principalFrom(c *gin.Context) (authcontext.Principal, bool) {
	return authcontext.PrincipalFromContext(c.Request.Context())
}
