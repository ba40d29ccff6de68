package stock

import (
	"github.com/greenbasket/backoffice/internal/stock/lock"
	"github.com/greenbasket/backoffice/internal/stock/repository"
	"github.com/greenbasket/backoffice/internal/stock/service"
	"go.uber.org/fx"
)

var Module = fx.Module("stock",
	lock.Module,
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
