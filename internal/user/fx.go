package user

import (
	"github.com/smallbiznis/backoffice/internal/user/repository"
	"github.com/smallbiznis/backoffice/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
)
