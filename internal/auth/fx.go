package auth

import (
	"github.com/smallbiznis/backoffice/internal/auth/service"
	"github.com/smallbiznis/backoffice/internal/auth/session"
	"github.com/smallbiznis/backoffice/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(token.ProvideManager),
	fx.Provide(session.NewManager),
	fx.Provide(service.New),
)
