package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	checkouts         metric.Int64Counter
	stockReservations metric.Int64Counter
	stockMutations    metric.Int64Counter
	orderTransitions  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "http", "http/protobuf":
		return otlpmetrichttp.New(context.Background(),
			otlpmetrichttp.WithEndpoint(endpoint),
			otlpmetrichttp.WithInsecure(),
		)
	case "", "grpc":
		return otlpmetricgrpc.New(context.Background(),
			otlpmetricgrpc.WithEndpoint(endpoint),
			otlpmetricgrpc.WithInsecure(),
		)
	default:
		return nil, fmt.Errorf("unsupported otlp protocol %q", protocol)
	}
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "backoffice"
	}
	meter := provider.Meter(name)

	checkouts, err := meter.Int64Counter("backoffice_checkouts_total")
	if err != nil {
		return nil, err
	}
	stockReservations, err := meter.Int64Counter("backoffice_stock_reservations_total")
	if err != nil {
		return nil, err
	}
	stockMutations, err := meter.Int64Counter("backoffice_stock_mutations_total")
	if err != nil {
		return nil, err
	}
	orderTransitions, err := meter.Int64Counter("backoffice_order_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		checkouts:         checkouts,
		stockReservations: stockReservations,
		stockMutations:    stockMutations,
		orderTransitions:  orderTransitions,
	}, nil
}

// RecordCheckout increments checkout counts by result.
func (m *Metrics) RecordCheckout(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.checkouts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordStockReservation increments reservation counts by result.
func (m *Metrics) RecordStockReservation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.stockReservations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// RecordStockMutation increments stock mutation counts by change type.
func (m *Metrics) RecordStockMutation(ctx context.Context, changeType string) {
	if m == nil {
		return
	}
	m.stockMutations.Add(ctx, 1, metric.WithAttributes(attribute.String("change_type", changeType)))
}

// RecordOrderTransition increments transition counts by target state.
func (m *Metrics) RecordOrderTransition(ctx context.Context, target string) {
	if m == nil {
		return
	}
	m.orderTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
}
