package order

import (
	"github.com/greenbasket/backoffice/internal/order/repository"
	"github.com/greenbasket/backoffice/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
