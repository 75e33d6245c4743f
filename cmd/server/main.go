package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/banking/merchant-risk-service/internal/alerting"
	"github.com/banking/merchant-risk-service/internal/audit"
	"github.com/banking/merchant-risk-service/internal/config"
	"github.com/banking/merchant-risk-service/internal/httpapi"
	"github.com/banking/merchant-risk-service/internal/merchant"
	"github.com/banking/merchant-risk-service/internal/messaging"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/pkg/telemetry"
	"github.com/banking/merchant-risk-service/internal/risk"
	"github.com/banking/merchant-risk-service/internal/storage/memory"
	"github.com/banking/merchant-risk-service/internal/storage/postgres"
	redisstore "github.com/banking/merchant-risk-service/internal/storage/redis"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize Logger
	log, err := logger.New(cfg.Telemetry.ServiceName, cfg.Telemetry.Environment, cfg.Telemetry.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName:   cfg.Telemetry.ServiceName,
			Environment:   cfg.Telemetry.Environment,
			OTLPEndpoint:  cfg.Telemetry.OTLPEndpoint,
			SamplingRatio: cfg.Telemetry.SamplingRatio,
		})
		if err != nil {
			log.Fatal("failed to initialize telemetry", logger.ErrorField(err))
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warn("telemetry shutdown failed", logger.ErrorField(err))
			}
		}()
	}

	// 4. Storage
	var (
		merchantRepo   merchant.Repository
		assessmentRepo risk.AssessmentRepository
		configRepo     risk.ConfigVersionRepository
		auditRepo      audit.Repository
		alertRepo      alerting.Repository
	)
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			Database:        cfg.Database.Database,
			SSLMode:         cfg.Database.SSLMode,
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		})
		if err != nil {
			log.Fatal("failed to connect to database", logger.ErrorField(err))
		}
		defer pool.Close()

		merchantRepo = postgres.NewMerchantRepository(pool)
		assessmentRepo = postgres.NewAssessmentRepository(pool)
		configRepo = postgres.NewConfigRepository(pool)
		auditRepo = postgres.NewAuditRepository(pool)
		alertRepo = postgres.NewAlertRepository(pool)
	default:
		merchantRepo = memory.NewMerchantRepository()
		assessmentRepo = memory.NewAssessmentRepository()
		configRepo = memory.NewConfigVersionRepository()
		auditRepo = memory.NewAuditRepository()
		alertRepo = memory.NewAlertRepository()
	}

	// 5. Kafka publisher (optional)
	var publisher *messaging.Publisher
	if cfg.Kafka.Enabled {
		publisher, err = messaging.NewPublisher(messaging.Config{
			Brokers:     cfg.Kafka.Brokers,
			AlertsTopic: cfg.Kafka.AlertsTopic,
			AuditTopic:  cfg.Kafka.AuditTopic,
		}, log)
		if err != nil {
			log.Fatal("failed to connect kafka producer", logger.ErrorField(err))
		}
		defer publisher.Close() //nolint:errcheck
	}
	var alertPublisher alerting.Publisher
	var auditPublisher audit.Publisher
	if publisher != nil {
		alertPublisher = publisher
		auditPublisher = publisher
	}

	// 6. Redis cache (optional)
	var cache risk.AssessmentCache
	if cfg.Redis.Enabled {
		client := goredis.NewClient(&goredis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal("failed to connect to redis", logger.ErrorField(err))
		}
		defer client.Close() //nolint:errcheck
		cache = redisstore.NewAssessmentCache(client, cfg.Redis.AssessmentCacheTTL)
	}

	// 7. Domain services
	trail := audit.NewTrail(auditRepo, auditPublisher, log)
	dispatcher := alerting.NewDispatcher(alertRepo, alertPublisher, log)

	configStore, err := risk.NewConfigStore(ctx, cfg.Risk.SeedRiskConfig(), configRepo, log)
	if err != nil {
		log.Fatal("failed to initialize risk configuration", logger.ErrorField(err))
	}

	engine := risk.NewEngine(configStore, assessmentRepo, trail, dispatcher, cache, log)
	merchantService := merchant.NewService(merchantRepo, engine, trail, log)

	// 8. HTTP transport
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%d", cfg.Server.MaxRequestSize)))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.Security.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	handler := httpapi.NewHandler(merchantService, engine, dispatcher, trail, log)
	handler.Register(e, httpapi.AdminAuth(httpapi.AuthConfig{
		JWTSecret:    cfg.Security.JWTSecret,
		AdminAPIKey:  cfg.Security.AdminAPIKey,
		APIKeyHeader: cfg.Security.APIKeyHeader,
	}))

	// 9. Start Server (Graceful Shutdown)
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)

	go func() {
		if err := e.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("shutting down the server", logger.ErrorField(err))
		}
	}()

	log.Info("server started", logger.StringField("addr", serverAddr))

	// Wait for interrupt signal to gracefully shutdown the server with a timeout
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal("forced shutdown", logger.ErrorField(err))
	}

	log.Info("server exited properly")
}
