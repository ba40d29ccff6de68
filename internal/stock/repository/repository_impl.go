package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/greenbasket/backoffice/internal/stock/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateRecord(ctx context.Context, db *gorm.DB, record *domain.StockRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stock_records (product_id, quantity, reorder_threshold, max_capacity, location, last_updated_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ProductID,
		record.Quantity,
		record.ReorderThreshold,
		record.MaxCapacity,
		record.Location,
		record.LastUpdatedBy,
		record.CreatedAt,
		record.UpdatedAt,
	).Error
}

func (r *repo) FindRecord(ctx context.Context, db *gorm.DB, productID snowflake.ID) (*domain.StockRecord, error) {
	var rec domain.StockRecord
	err := db.WithContext(ctx).Raw(
		`SELECT product_id, quantity, reorder_threshold, max_capacity, location, last_updated_by, created_at, updated_at
		 FROM stock_records WHERE product_id = ?`,
		productID,
	).Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	if rec.ProductID == 0 {
		return nil, nil
	}
	return &rec, nil
}

func (r *repo) ApplyDelta(ctx context.Context, db *gorm.DB, productID snowflake.ID, delta int, actor string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE stock_records
		 SET quantity = quantity + ?, last_updated_by = ?, updated_at = ?
		 WHERE product_id = ? AND quantity + ? >= 0`,
		delta,
		actor,
		at,
		productID,
		delta,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) UpdateConfig(ctx context.Context, db *gorm.DB, record *domain.StockRecord) error {
	return db.WithContext(ctx).Exec(
		`UPDATE stock_records
		 SET reorder_threshold = ?, max_capacity = ?, location = ?, last_updated_by = ?, updated_at = ?
		 WHERE product_id = ?`,
		record.ReorderThreshold,
		record.MaxCapacity,
		record.Location,
		record.LastUpdatedBy,
		record.UpdatedAt,
		record.ProductID,
	).Error
}

func (r *repo) AppendHistory(ctx context.Context, db *gorm.DB, entry *domain.HistoryEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO stock_history (id, product_id, change_type, quantity_before, quantity_after, delta, reason, actor, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ProductID,
		string(entry.ChangeType),
		entry.QuantityBefore,
		entry.QuantityAfter,
		entry.Delta,
		entry.Reason,
		entry.Actor,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) RecentHistory(ctx context.Context, db *gorm.DB, productID snowflake.ID, limit int) ([]domain.HistoryEntry, error) {
	var items []domain.HistoryEntry
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) HistoryTimeline(ctx context.Context, db *gorm.DB, productID snowflake.ID) ([]domain.HistoryEntry, error) {
	var items []domain.HistoryEntry
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
