package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateRecord(ctx context.Context, db *gorm.DB, record *StockRecord) error
	FindRecord(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*StockRecord, error)
	// ApplyDelta adds delta to quantity iff the result stays non-negative;
	// returns the number of rows changed (0 means the guard rejected it).
	ApplyDelta(ctx context.Context, db *gorm.DB, productID snowflake.ID, delta int, actor string, at time.Time) (int64, error)
	UpdateConfig(ctx context.Context, db *gorm.DB, record *StockRecord) error
	AppendHistory(ctx context.Context, db *gorm.DB, entry *HistoryEntry) error
	RecentHistory(ctx context.Context, db *gorm.DB, productID snowflake.ID, limit int) ([]HistoryEntry, error)
	HistoryTimeline(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]HistoryEntry, error)
}
