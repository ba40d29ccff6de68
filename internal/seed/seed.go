package seed

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/greenbasket/backoffice/internal/catalog/domain"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type demoProduct struct {
	name     string
	price    string
	quantity int
}

var demoProducts = []demoProduct{
	{name: "Organic Coffee Beans 1kg", price: "18.50", quantity: 40},
	{name: "Bamboo Toothbrush Set", price: "7.90", quantity: 120},
	{name: "Reusable Water Bottle", price: "24.00", quantity: 60},
	{name: "Beeswax Food Wraps", price: "12.75", quantity: 35},
}

// Run inserts demo products with opening stock. Products already present by
// code are skipped, so repeated startups are safe.
func Run(db *gorm.DB, node *snowflake.Node, log *zap.Logger) error {
	log = log.Named("seed")
	now := time.Now().UTC()

	for _, demo := range demoProducts {
		code := slug.Make(demo.name)

		var count int64
		if err := db.Model(&catalogdomain.Product{}).Where("code = ?", code).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		price, err := decimal.NewFromString(demo.price)
		if err != nil {
			return err
		}

		product := catalogdomain.Product{
			ID:        node.Generate(),
			Code:      code,
			Name:      demo.name,
			Price:     price,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		record := stockdomain.StockRecord{
			ProductID:        product.ID,
			Quantity:         demo.quantity,
			ReorderThreshold: stockdomain.DefaultReorderThreshold,
			LastUpdatedBy:    "SYSTEM",
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		entry := stockdomain.HistoryEntry{
			ID:            node.Generate(),
			ProductID:     product.ID,
			ChangeType:    stockdomain.ChangeTypeCreation,
			QuantityAfter: demo.quantity,
			Delta:         demo.quantity,
			Reason:        "demo seed",
			Actor:         "SYSTEM",
			CreatedAt:     now,
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
			if err := tx.Create(&record).Error; err != nil {
				return err
			}
			return tx.Create(&entry).Error
		})
		if err != nil {
			return err
		}
		log.Info("seeded product", zap.String("code", code), zap.Int("quantity", demo.quantity))
	}
	return nil
}
