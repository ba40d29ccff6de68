package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/greenbasket/backoffice/internal/catalog/domain"
	checkoutdomain "github.com/greenbasket/backoffice/internal/checkout/domain"
	"github.com/greenbasket/backoffice/internal/config"
	obs "github.com/greenbasket/backoffice/internal/observability"
	obslogger "github.com/greenbasket/backoffice/internal/observability/logger"
	obsmetrics "github.com/greenbasket/backoffice/internal/observability/metrics"
	orderdomain "github.com/greenbasket/backoffice/internal/order/domain"
	stockdomain "github.com/greenbasket/backoffice/internal/stock/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg         config.Config
	ObsCfg      obs.Config
	Log         *zap.Logger
	HTTPMetrics *obsmetrics.HTTPMetrics
	Catalog     catalogdomain.Service
	Stock       stockdomain.Service
	Orders      orderdomain.Service
	Checkout    checkoutdomain.Service
}

func NewEngine(p Params) *gin.Engine {
	if !p.ObsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		obslogger.GinMiddleware(obslogger.MiddlewareConfig{
			Debug:           p.ObsCfg.Debug(),
			ErrorClassifier: Classify,
		}),
		obsmetrics.GinMiddleware(p.HTTPMetrics),
	)

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	(&catalogHandler{svc: p.Catalog}).register(v1)
	(&stockHandler{svc: p.Stock}).register(v1)
	(&orderHandler{svc: p.Orders}).register(v1)
	(&checkoutHandler{svc: p.Checkout}).register(v1)

	return engine
}

func Run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Invoke(Run),
)
