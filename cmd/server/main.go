package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"liquidity/internal/api"
	"liquidity/internal/config"
	"liquidity/internal/engine"
	"liquidity/internal/integration"
	"liquidity/internal/repository"
	"liquidity/internal/service"
	"liquidity/internal/websocket"
	"liquidity/pkg/logging"

	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	db, err := initDatabase(cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("name", cfg.Database.Name),
	)

	// Репозитории
	ruleRepo := repository.NewRuleRepository(db)
	actionRepo := repository.NewActionRepository(db)
	pipelineRepo := repository.NewPipelineRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Обработчики внешних систем
	registry := integration.NewRegistry()
	for _, system := range integration.SupportedSystems {
		handler, err := integration.NewHandler(system, cfg)
		if err != nil {
			logger.Fatal("failed to init integration", zap.String("system", system), zap.Error(err))
		}
		registry.Register(handler)
	}
	defer registry.Close()
	logger.Info("integrations registered", zap.Strings("systems", registry.Systems()))

	// WebSocket hub
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Сервисы
	notificationService := service.NewNotificationService(notificationRepo, hub, cfg.Engine.NotificationRetention, logger)

	var providers []service.BalanceProvider
	for _, system := range registry.Systems() {
		handler, _ := registry.Get(system)
		if provider, ok := handler.(service.BalanceProvider); ok {
			providers = append(providers, provider)
		}
	}
	balanceService := service.NewBalanceService(balanceRepo, providers, cfg.Engine.BalanceTimeout, logger)

	actionService := service.NewActionService(actionRepo, registry)
	ruleService := service.NewRuleService(ruleRepo, pipelineRepo, orderRepo, actionService, notificationService, logger)

	// Движок
	executor := engine.NewExecutor(registry, orderRepo, cfg.Engine.OrderTimeout, cfg.Engine.MaxRetries, cfg.Engine.RetryBackoff, logger)
	orchestrator := engine.NewOrchestrator(ruleRepo, pipelineRepo, orderRepo, actionRepo, executor, notificationService, hub, logger)
	tracker := engine.NewTracker(orderRepo, actionRepo, registry, hub, cfg.Engine.PollTimeout, logger)
	eng := engine.NewEngine(cfg, ruleRepo, pipelineRepo, balanceService, engine.NewEvaluator(), orchestrator, tracker, hub, logger)

	// Фоновые процессы
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go balanceService.Run(ctx, cfg.Engine.TickInterval)
	go notificationService.RunRetention(ctx, time.Hour)
	go eng.Run(ctx)

	// HTTP API
	deps := &api.Dependencies{
		RuleService:         ruleService,
		ActionService:       actionService,
		BalanceService:      balanceService,
		NotificationService: notificationService,
		Engine:              eng,
		Hub:                 hub,
		Log:                 logger,
		APITokenHash:        cfg.Security.APITokenHash,
	}
	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", server.Addr))
		if cfg.Server.UseHTTPS {
			if err := server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		} else {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// initDatabase создает подключение к базе данных
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
