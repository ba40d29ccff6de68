package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/greenbasket/backoffice/internal/checkout/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Processor is the built-in authorizer. It approves everything and mints a
// reference; a real gateway slots in behind the same interface.
type Processor struct {
	log *zap.Logger
}

func New(log *zap.Logger) domain.PaymentProcessor {
	return &Processor{log: log.Named("checkout.payment")}
}

func (p *Processor) Authorize(ctx context.Context, customerID string, method string, amount decimal.Decimal) (string, error) {
	ref := "pay_" + uuid.NewString()
	p.log.Info("payment authorized",
		zap.String("customer_id", customerID),
		zap.String("method", method),
		zap.String("amount", amount.String()),
		zap.String("payment_ref", ref),
	)
	return ref, nil
}
