package checkout

import (
	"github.com/greenbasket/backoffice/internal/checkout/payment"
	"github.com/greenbasket/backoffice/internal/checkout/service"
	"go.uber.org/fx"
)

var Module = fx.Module("checkout",
	fx.Provide(
		payment.New,
		service.New,
	),
)
