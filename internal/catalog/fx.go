package catalog

import (
	"github.com/greenbasket/backoffice/internal/catalog/repository"
	"github.com/greenbasket/backoffice/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
