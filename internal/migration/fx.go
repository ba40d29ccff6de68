package migration

import (
	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/greenbasket/backoffice/internal/catalog/domain"
	"github.com/greenbasket/backoffice/internal/config"
	"github.com/greenbasket/backoffice/internal/events"
	orderdomain "github.com/greenbasket/backoffice/internal/order/domain"
	"github.com/greenbasket/backoffice/internal/seed"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Run migrates the schema at startup. Postgres uses the versioned SQL
// migrations; other dialects fall back to AutoMigrate, which keeps local
// sqlite and mysql development working without a migration history.
func Run(cfg config.Config, db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	log = log.Named("migration")

	if cfg.DBType == "postgres" {
		if err := RunPostgres(db, log); err != nil {
			return err
		}
	} else {
		if err := db.AutoMigrate(
			&catalogdomain.Product{},
			&stockdomain.StockRecord{},
			&stockdomain.HistoryEntry{},
			&orderdomain.Order{},
			&orderdomain.LineItem{},
			&events.OutboxEvent{},
		); err != nil {
			return err
		}
		log.Info("schema auto-migrated", zap.String("driver", cfg.DBType))
	}

	if cfg.SeedDemoData {
		return seed.Run(db, node, log)
	}
	return nil
}

var Module = fx.Module("migration",
	fx.Invoke(Run),
)
