package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/greenbasket/backoffice/internal/clock"
	"github.com/greenbasket/backoffice/internal/events"
	obsmetrics "github.com/greenbasket/backoffice/internal/observability/metrics"
	"github.com/greenbasket/backoffice/internal/stock/domain"
	"github.com/greenbasket/backoffice/internal/stock/lock"
	pkgdb "github.com/greenbasket/backoffice/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	lockTTL         = 5 * time.Second
	lockRetries     = 3
	lockRetryPause  = 50 * time.Millisecond
	defaultActor    = "SYSTEM"
	historyPageSize = 20
	historyPageMax  = 100
)

// keyedMutex serializes mutations per product. Different products never
// contend; the same product's read-check-write plus history append runs as
// one critical section.
type keyedMutex struct {
	mus sync.Map // snowflake.ID -> *sync.Mutex
}

func (k *keyedMutex) lock(id snowflake.ID) func() {
	v, _ := k.mus.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Outbox     *events.Outbox
	Locker     *lock.Locker        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	outbox     *events.Outbox
	locker     *lock.Locker
	obsMetrics *obsmetrics.Metrics
	locks      keyedMutex
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("stock.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		outbox:     p.Outbox,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateRecord(ctx context.Context, req domain.CreateRecordRequest) (*domain.RecordResponse, error) {
	var resp *domain.RecordResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := s.CreateRecordTx(ctx, tx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateRecordTx creates the record and its CREATION entry inside the
// caller's transaction, so a caller can pair the record with its own writes
// and have everything commit or roll back together.
func (s *Service) CreateRecordTx(ctx context.Context, tx *gorm.DB, req domain.CreateRecordRequest) (*domain.RecordResponse, error) {
	if req.ProductID == 0 {
		return nil, domain.ErrInvalidProductID
	}
	if req.InitialQuantity < 0 {
		return nil, domain.ErrInvalidQuantity
	}

	threshold := domain.DefaultReorderThreshold
	if req.ReorderThreshold != nil {
		if *req.ReorderThreshold < 0 {
			return nil, domain.ErrInvalidThreshold
		}
		threshold = *req.ReorderThreshold
	}
	if req.MaxCapacity != nil && *req.MaxCapacity < req.InitialQuantity {
		return nil, domain.ErrCapacityExceeded
	}

	actor := normalizeActor(req.Actor)
	now := s.clock.Now()
	rec := &domain.StockRecord{
		ProductID:        req.ProductID,
		Quantity:         req.InitialQuantity,
		ReorderThreshold: threshold,
		MaxCapacity:      req.MaxCapacity,
		Location:         req.Location,
		LastUpdatedBy:    actor,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.CreateRecord(ctx, tx, rec); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrRecordExists
		}
		return nil, err
	}
	entry := &domain.HistoryEntry{
		ID:             s.genID.Generate(),
		ProductID:      req.ProductID,
		ChangeType:     domain.ChangeTypeCreation,
		QuantityBefore: 0,
		QuantityAfter:  req.InitialQuantity,
		Delta:          req.InitialQuantity,
		Reason:         "stock record created",
		Actor:          actor,
		CreatedAt:      now,
	}
	if err := s.repo.AppendHistory(ctx, tx, entry); err != nil {
		return nil, err
	}

	resp := toRecordResponse(rec)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, productID snowflake.ID) (*domain.RecordResponse, error) {
	if productID == 0 {
		return nil, domain.ErrInvalidProductID
	}
	rec, err := s.repo.FindRecord(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrRecordNotFound
	}
	resp := toRecordResponse(rec)
	return &resp, nil
}

func (s *Service) Reserve(ctx context.Context, req domain.MutationRequest) (*domain.MutationResponse, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	resp, err := s.mutate(ctx, req.ProductID, -req.Quantity, req.Actor, req.Reason, domain.ChangeTypeDecrease)
	if s.obsMetrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		s.obsMetrics.RecordStockReservation(ctx, result)
	}
	return resp, err
}

func (s *Service) Restock(ctx context.Context, req domain.MutationRequest) (*domain.MutationResponse, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, req.ProductID, req.Quantity, req.Actor, req.Reason, domain.ChangeTypeIncrease)
}

func (s *Service) Adjust(ctx context.Context, req domain.AdjustRequest) (*domain.MutationResponse, error) {
	if req.Delta == 0 {
		return nil, domain.ErrInvalidQuantity
	}
	changeType := domain.ChangeTypeIncrease
	if req.Delta < 0 {
		changeType = domain.ChangeTypeDecrease
	}
	return s.mutate(ctx, req.ProductID, req.Delta, req.Actor, req.Reason, changeType)
}

// mutate applies a signed delta and appends the matching history entry in one
// transaction, under the per-product lock.
func (s *Service) mutate(ctx context.Context, productID snowflake.ID, delta int, actor, reason string, changeType domain.ChangeType) (*domain.MutationResponse, error) {
	if productID == 0 {
		return nil, domain.ErrInvalidProductID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}
	actor = normalizeActor(actor)

	release, err := s.lockProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp *domain.MutationResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.repo.FindRecord(ctx, tx, productID)
		if err != nil {
			return err
		}
		if rec == nil {
			return domain.ErrRecordNotFound
		}

		newQuantity := rec.Quantity + delta
		if newQuantity < 0 {
			return domain.ErrInsufficientStock
		}
		if delta > 0 && rec.MaxCapacity != nil && newQuantity > *rec.MaxCapacity {
			return domain.ErrCapacityExceeded
		}

		now := s.clock.Now()
		rows, err := s.repo.ApplyDelta(ctx, tx, productID, delta, actor, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Guard clause in the UPDATE rejected the delta; with the lock
			// held this only happens if the row vanished or quantity moved
			// underneath us.
			return domain.ErrInsufficientStock
		}

		entry := &domain.HistoryEntry{
			ID:             s.genID.Generate(),
			ProductID:      productID,
			ChangeType:     changeType,
			QuantityBefore: rec.Quantity,
			QuantityAfter:  newQuantity,
			Delta:          delta,
			Reason:         reason,
			Actor:          actor,
			CreatedAt:      now,
		}
		if err := s.repo.AppendHistory(ctx, tx, entry); err != nil {
			return err
		}

		status := domain.Classify(newQuantity, rec.ReorderThreshold)
		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type: events.TypeStockChanged,
			Payload: map[string]any{
				"product_id":   productID.String(),
				"new_quantity": newQuantity,
				"status":       string(status),
			},
			DedupeKey: "stock_changed:" + entry.ID.String(),
		}); err != nil {
			return err
		}

		resp = &domain.MutationResponse{
			ProductID:   productID.String(),
			NewQuantity: newQuantity,
			Status:      status,
			Entry:       toHistoryResponse(entry),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordStockMutation(ctx, string(changeType))
	}
	return resp, nil
}

func (s *Service) UpdateConfig(ctx context.Context, req domain.UpdateConfigRequest) (*domain.RecordResponse, error) {
	if req.ProductID == 0 {
		return nil, domain.ErrInvalidProductID
	}
	if req.ReorderThreshold != nil && *req.ReorderThreshold < 0 {
		return nil, domain.ErrInvalidThreshold
	}

	release, err := s.lockProduct(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp *domain.RecordResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.repo.FindRecord(ctx, tx, req.ProductID)
		if err != nil {
			return err
		}
		if rec == nil {
			return domain.ErrRecordNotFound
		}

		changes := datatypes.JSONMap{}
		if req.ReorderThreshold != nil && *req.ReorderThreshold != rec.ReorderThreshold {
			changes["reorder_threshold"] = map[string]any{"before": rec.ReorderThreshold, "after": *req.ReorderThreshold}
			rec.ReorderThreshold = *req.ReorderThreshold
		}
		if req.MaxCapacity != nil && !intPtrEqual(req.MaxCapacity, rec.MaxCapacity) {
			changes["max_capacity"] = map[string]any{"before": intPtrValue(rec.MaxCapacity), "after": *req.MaxCapacity}
			rec.MaxCapacity = req.MaxCapacity
		}
		if req.Location != nil && !strPtrEqual(req.Location, rec.Location) {
			changes["location"] = map[string]any{"before": strPtrValue(rec.Location), "after": *req.Location}
			rec.Location = req.Location
		}

		if len(changes) == 0 {
			r := toRecordResponse(rec)
			resp = &r
			return nil
		}

		actor := normalizeActor(req.Actor)
		now := s.clock.Now()
		rec.LastUpdatedBy = actor
		rec.UpdatedAt = now
		if err := s.repo.UpdateConfig(ctx, tx, rec); err != nil {
			return err
		}

		entry := &domain.HistoryEntry{
			ID:             s.genID.Generate(),
			ProductID:      req.ProductID,
			ChangeType:     domain.ChangeTypeConfigUpdate,
			QuantityBefore: rec.Quantity,
			QuantityAfter:  rec.Quantity,
			Delta:          0,
			Reason:         "stock configuration updated",
			Actor:          actor,
			Metadata:       changes,
			CreatedAt:      now,
		}
		if err := s.repo.AppendHistory(ctx, tx, entry); err != nil {
			return err
		}

		r := toRecordResponse(rec)
		resp = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) History(ctx context.Context, productID snowflake.ID, limit int) ([]domain.HistoryResponse, error) {
	if productID == 0 {
		return nil, domain.ErrInvalidProductID
	}
	if limit <= 0 {
		limit = historyPageSize
	}
	if limit > historyPageMax {
		limit = historyPageMax
	}

	items, err := s.repo.RecentHistory(ctx, s.db, productID, limit)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.HistoryResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toHistoryResponse(&items[i]))
	}
	return resp, nil
}

// lockProduct takes the in-process mutex and, when configured, the redis
// lock. The returned func releases both.
func (s *Service) lockProduct(ctx context.Context, productID snowflake.ID) (func(), error) {
	unlock := s.locks.lock(productID)
	if s.locker == nil {
		return unlock, nil
	}

	key := "stock:" + productID.String()
	for attempt := 0; attempt < lockRetries; attempt++ {
		token, ok, err := s.locker.TryLock(ctx, key, lockTTL)
		if err != nil {
			unlock()
			return nil, err
		}
		if ok {
			return func() {
				if err := s.locker.Release(ctx, key, token); err != nil {
					s.log.Warn("stock lock release failed", zap.String("key", key), zap.Error(err))
				}
				unlock()
			}, nil
		}
		time.Sleep(lockRetryPause)
	}

	unlock()
	return nil, domain.ErrLockUnavailable
}

func toRecordResponse(rec *domain.StockRecord) domain.RecordResponse {
	return domain.RecordResponse{
		ProductID:        rec.ProductID.String(),
		Quantity:         rec.Quantity,
		Status:           rec.Status(),
		ReorderThreshold: rec.ReorderThreshold,
		MaxCapacity:      rec.MaxCapacity,
		Location:         rec.Location,
		LastUpdatedBy:    rec.LastUpdatedBy,
		LastUpdatedAt:    rec.UpdatedAt,
	}
}

func toHistoryResponse(entry *domain.HistoryEntry) domain.HistoryResponse {
	resp := domain.HistoryResponse{
		ID:             entry.ID.String(),
		ProductID:      entry.ProductID.String(),
		ChangeType:     entry.ChangeType,
		QuantityBefore: entry.QuantityBefore,
		QuantityAfter:  entry.QuantityAfter,
		Delta:          entry.Delta,
		Reason:         entry.Reason,
		Actor:          entry.Actor,
		CreatedAt:      entry.CreatedAt,
	}
	if len(entry.Metadata) > 0 {
		resp.Metadata = map[string]any(entry.Metadata)
	}
	return resp
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return defaultActor
	}
	return actor
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrValue(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrValue(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
