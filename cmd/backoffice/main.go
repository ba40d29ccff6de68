package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/greenbasket/backoffice/internal/catalog"
	"github.com/greenbasket/backoffice/internal/checkout"
	"github.com/greenbasket/backoffice/internal/clock"
	"github.com/greenbasket/backoffice/internal/config"
	"github.com/greenbasket/backoffice/internal/events"
	"github.com/greenbasket/backoffice/internal/migration"
	"github.com/greenbasket/backoffice/internal/observability"
	"github.com/greenbasket/backoffice/internal/order"
	"github.com/greenbasket/backoffice/internal/pricing"
	"github.com/greenbasket/backoffice/internal/server"
	"github.com/greenbasket/backoffice/internal/stock"
	"github.com/greenbasket/backoffice/pkg/db"
	"go.uber.org/fx"
)

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func main() {
	fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		stock.Module,
		pricing.Module,
		catalog.Module,
		order.Module,
		checkout.Module,
		migration.Module,
		server.Module,
	).Run()
}
