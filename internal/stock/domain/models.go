package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is derived from quantity and threshold on read, never stored.
type Status string

const (
	StatusOutOfStock Status = "OUT_OF_STOCK"
	StatusCritical   Status = "CRITICAL"
	StatusLow        Status = "LOW"
	StatusNormal     Status = "NORMAL"
)

// Classify derives the stock status for a quantity against its threshold.
func Classify(quantity, reorderThreshold int) Status {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= reorderThreshold/2:
		return StatusCritical
	case quantity <= reorderThreshold:
		return StatusLow
	default:
		return StatusNormal
	}
}

const DefaultReorderThreshold = 5

// StockRecord holds the mutable stock state for one product. Quantity only
// changes through signed delta operations that append a history entry in the
// same transaction.
type StockRecord struct {
	ProductID        snowflake.ID `gorm:"primaryKey"`
	Quantity         int          `gorm:"not null"`
	ReorderThreshold int          `gorm:"not null;default:5"`
	MaxCapacity      *int
	Location         *string   `gorm:"type:text"`
	LastUpdatedBy    string    `gorm:"type:text;not null"`
	CreatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (StockRecord) TableName() string { return "stock_records" }

func (r StockRecord) Status() Status {
	return Classify(r.Quantity, r.ReorderThreshold)
}

// ChangeType classifies a history entry.
type ChangeType string

const (
	ChangeTypeCreation     ChangeType = "CREATION"
	ChangeTypeIncrease     ChangeType = "INCREASE"
	ChangeTypeDecrease     ChangeType = "DECREASE"
	ChangeTypeConfigUpdate ChangeType = "CONFIG_UPDATE"
)

// HistoryEntry is one append-only audit row. quantity_after is always
// quantity_before + delta; config updates carry delta 0 and the changed
// fields in metadata.
type HistoryEntry struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	ProductID      snowflake.ID      `gorm:"not null;index:ix_stock_history_product"`
	ChangeType     ChangeType        `gorm:"type:text;not null"`
	QuantityBefore int               `gorm:"not null"`
	QuantityAfter  int               `gorm:"not null"`
	Delta          int               `gorm:"not null"`
	Reason         string            `gorm:"type:text;not null"`
	Actor          string            `gorm:"type:text;not null"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;index:ix_stock_history_product"`
}

// TableName sets the database table name.
func (HistoryEntry) TableName() string { return "stock_history" }
