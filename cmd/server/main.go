package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/orderdesk/internal/domain/trade"
	"github.com/erp/orderdesk/internal/infrastructure/config"
	"github.com/erp/orderdesk/internal/infrastructure/docnumber"
	"github.com/erp/orderdesk/internal/infrastructure/gateway"
	"github.com/erp/orderdesk/internal/infrastructure/kvstore"
	"github.com/erp/orderdesk/internal/infrastructure/logger"
	"github.com/erp/orderdesk/internal/infrastructure/persistence"
	"github.com/erp/orderdesk/internal/infrastructure/printing"
	"github.com/erp/orderdesk/internal/infrastructure/reference"
	"github.com/erp/orderdesk/internal/infrastructure/storage"
	"github.com/erp/orderdesk/internal/infrastructure/telemetry"
	"github.com/erp/orderdesk/internal/interfaces/http/handler"
	"github.com/erp/orderdesk/internal/interfaces/http/middleware"
	"github.com/erp/orderdesk/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx := context.Background()
	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}

	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize log exporter", zap.Error(err))
	}

	log, err := logger.New(logCfg, logProvider.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting orderdesk",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	metrics, err := telemetry.NewSubmissionMetrics(meterProvider.Meter("orderdesk"))
	if err != nil {
		log.Fatal("Failed to register metrics", zap.Error(err))
	}

	system := handler.NewSystemHandler(cfg.App.Name, version)

	store, locker, closeStore, err := openStore(ctx, cfg, log, system)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer closeStore()

	numbers, err := docnumber.New(cfg.App.NodeID)
	if err != nil {
		log.Fatal("Failed to create document number generator", zap.Error(err))
	}

	gwCfg := gateway.Config{
		Mode: trade.GatewayMode(cfg.Gateway.Mode),
		Remote: gateway.RemoteConfig{
			BaseURL: cfg.Gateway.BaseURL,
			Timeout: cfg.Gateway.Timeout,
		},
		SalesLatency:    cfg.Gateway.SalesLatency,
		PurchaseLatency: cfg.Gateway.PurchaseLatency,
		LockTTL:         cfg.Gateway.LockTTL,
	}
	deps := gateway.Dependencies{
		Store:    store,
		Recorder: metrics,
		Logger:   log,
	}
	if cfg.Gateway.DistributedLock && locker != nil {
		deps.Locker = locker
	}

	var ref trade.ReferenceData
	if cfg.Catalog.BaseURL != "" {
		client, err := reference.NewHTTPClient(cfg.Catalog.BaseURL, cfg.Catalog.Timeout, log)
		if err != nil {
			log.Fatal("Failed to create reference data client", zap.Error(err))
		}
		ref = client
	} else {
		ref = reference.NewCatalogFromConfig(cfg.Catalog)
	}

	printer, closePrinter, err := newPrinter(ctx, cfg, ref, metrics, log)
	if err != nil {
		log.Fatal("Failed to create invoice printer", zap.Error(err))
	}
	defer closePrinter()

	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		Tracing:        cfg.Telemetry.Enabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORS:           corsConfig(cfg.HTTP),
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Registerer:     metricsRegisterer(cfg, metrics),
		MetricsHandler: metricsHandler(cfg, metrics),
		Health:         system.Healthz,
	}, log)
	if err != nil {
		log.Fatal("Failed to create HTTP engine", zap.Error(err))
	}

	r := router.NewRouter(engine)
	for _, direction := range []trade.Direction{trade.DirectionSales, trade.DirectionPurchase} {
		gw, err := gateway.New(direction, gwCfg, deps)
		if err != nil {
			log.Fatal("Failed to create submission gateway",
				zap.String("direction", direction.String()), zap.Error(err))
		}
		orderGateway, ok := gw.(handler.OrderGateway)
		if !ok {
			log.Fatal("Submission gateway cannot be cleared", zap.String("direction", direction.String()))
		}
		orders := handler.NewOrderHandler(orderGateway, numbers,
			handler.WithPrinter(printer),
			handler.WithPrintOnSubmit(cfg.Printing.Enabled),
			handler.WithReference(ref),
		)
		r.Register(registrar(orders.RegisterRoutes))
	}
	r.Register(registrar(handler.NewQuoteHandler().RegisterRoutes)).
		Register(registrar(handler.NewReferenceHandler(ref).RegisterRoutes))

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", system.GetSystemInfo)
	systemRoutes.GET("/ping", system.Ping)
	r.Register(systemRoutes)

	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := logProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shutdown log provider", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// registrar adapts a handler's RegisterRoutes to router.RouteRegistrar
type registrar func(rg *gin.RouterGroup)

func (f registrar) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

// openStore opens the key-value store behind local gateways and registers
// its health check. The locker is nil unless the store is Redis.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger, system *handler.SystemHandler) (trade.KeyValueStore, trade.Locker, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		log.Info("Using in-memory order storage", zap.Int("max_bytes", cfg.Storage.MaxBytes))
		return kvstore.NewMemoryStore(cfg.Storage.MaxBytes), nil, func() {}, nil

	case "redis":
		client, err := kvstore.NewRedisClient(ctx, kvstore.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		system.AddCheck("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		log.Info("Redis connected", zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}
		return kvstore.NewRedisStore(client, cfg.Storage.KeyPrefix),
			kvstore.NewRedisLocker(client, cfg.Storage.KeyPrefix), closeFn, nil

	case persistence.DriverSQLite, persistence.DriverPostgres:
		db, err := persistence.Open(cfg.Storage.Driver, cfg, log)
		if err != nil {
			return nil, nil, nil, err
		}
		dbSystem := "postgresql"
		if db.Driver == persistence.DriverSQLite {
			dbSystem = "sqlite"
		}
		if err := telemetry.InstrumentGorm(db.DB, telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing,
			DBSystem:        dbSystem,
			SlowQueryThresh: cfg.Telemetry.SlowQueryThreshold,
			LogFullSQL:      cfg.IsDevelopment(),
		}, log); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("failed to instrument database: %w", err)
		}
		if err := kvstore.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		system.AddCheck("database", func(context.Context) error {
			return db.Ping()
		})
		log.Info("Database connected", zap.String("driver", db.Driver))
		closeFn := func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}
		return kvstore.NewGormStore(db.DB), nil, closeFn, nil

	default:
		return nil, nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// newPrinter builds the invoice printer. PDF output is only wired when
// printing is enabled.
func newPrinter(ctx context.Context, cfg *config.Config, ref trade.ReferenceData, metrics *telemetry.SubmissionMetrics, log *zap.Logger) (*printing.Printer, func(), error) {
	layout, err := printing.NewHTMLTemplate()
	if err != nil {
		return nil, nil, err
	}
	renderer := printing.NewInvoiceRenderer(
		printing.WithCompanyName(cfg.Printing.CompanyName),
		printing.WithClosingNote(cfg.Printing.ClosingNote),
		printing.WithRendererLogger(log),
	)
	opts := []printing.PrinterOption{
		printing.WithReferenceData(ref),
		printing.WithRecorder(metrics),
		printing.WithPrinterLogger(log),
	}
	if !cfg.Printing.Enabled {
		return printing.NewPrinter(renderer, layout, opts...), func() {}, nil
	}

	var pdfStore printing.PDFStorage
	switch cfg.Printing.Backend {
	case "s3":
		objects, err := storage.NewS3ObjectStorage(&cfg.ObjectStorage, storage.WithLogger(log))
		if err != nil {
			return nil, nil, err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, nil, err
		}
		pdfStore = printing.NewObjectStorage(objects, log)
	default:
		fs, err := printing.NewFileSystemStorage(cfg.Printing.OutputDir, log)
		if err != nil {
			return nil, nil, err
		}
		pdfStore = fs
	}

	chrome := printing.NewChromedpRenderer(printing.ChromedpConfig{
		DefaultTimeout: cfg.Printing.Timeout,
		ExecPath:       cfg.Printing.ChromePath,
		NoSandbox:      os.Geteuid() == 0,
		Logger:         log,
	})
	opts = append(opts, printing.WithPDFRenderer(chrome), printing.WithStorage(pdfStore))

	log.Info("Invoice printing enabled", zap.String("backend", cfg.Printing.Backend))
	closeFn := func() {
		if err := chrome.Close(); err != nil {
			log.Error("Error closing PDF renderer", zap.Error(err))
		}
	}
	return printing.NewPrinter(renderer, layout, opts...), closeFn, nil
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.CORSAllowOrigins
	cors.AllowMethods = cfg.CORSAllowMethods
	cors.AllowHeaders = cfg.CORSAllowHeaders
	return cors
}

// metricsRegisterer returns nil when Prometheus metrics are disabled, so the
// engine skips HTTP metrics.
func metricsRegisterer(cfg *config.Config, metrics *telemetry.SubmissionMetrics) prometheus.Registerer {
	if !cfg.Telemetry.MetricsEnabled {
		return nil
	}
	return metrics.Registry()
}

func metricsHandler(cfg *config.Config, metrics *telemetry.SubmissionMetrics) http.Handler {
	if !cfg.Telemetry.MetricsEnabled {
		return nil
	}
	return metrics.Handler()
}
