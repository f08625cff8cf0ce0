package order

import (
	"github.com/smallbiznis/backoffice/internal/order/repository"
	"github.com/smallbiznis/backoffice/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewNumberGenerator),
	fx.Provide(service.New),
)
