package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler consumes a published outbox row. Returning an error leaves the row
// unpublished so the next poll retries it.
type Handler func(ctx context.Context, evt OutboxEvent) error

type DispatcherParams struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

// Dispatcher polls unpublished outbox rows and delivers them to subscribers.
type Dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	interval time.Duration

	mu       sync.RWMutex
	handlers []Handler

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	return &Dispatcher{
		db:       p.DB,
		log:      p.Log.Named("events.dispatcher"),
		interval: time.Second,
		done:     make(chan struct{}),
	}
}

func (d *Dispatcher) Subscribe(h Handler) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx)
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchPending(ctx); err != nil && ctx.Err() == nil {
				d.log.Warn("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchPending delivers every unpublished row to all subscribers and marks
// delivered rows published. Exported so tests can drive the loop directly.
func (d *Dispatcher) DispatchPending(ctx context.Context) error {
	var pending []OutboxEvent
	err := d.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("id ASC").
		Limit(50).
		Find(&pending).Error
	if err != nil {
		return err
	}

	d.mu.RLock()
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.RUnlock()

	for _, evt := range pending {
		delivered := true
		for _, h := range handlers {
			if err := h(ctx, evt); err != nil {
				d.log.Warn("event handler failed",
					zap.String("event_type", evt.Type),
					zap.String("dedupe_key", evt.DedupeKey),
					zap.Error(err),
				)
				delivered = false
				break
			}
		}
		if !delivered {
			continue
		}

		now := time.Now().UTC()
		if err := d.db.WithContext(ctx).
			Model(&OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", evt.ID).
			Update("published_at", now).Error; err != nil {
			return err
		}
	}

	return nil
}
