package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"storefront-payments/internal/auth"
	"storefront-payments/internal/client"
	"storefront-payments/internal/config"
	"storefront-payments/internal/handler"
	"storefront-payments/internal/identity"
	"storefront-payments/internal/repository"
	"storefront-payments/internal/server"
	"storefront-payments/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Printf("Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db := client.InitMysqlClient(cfg.DatabaseURL)
	gatewayClient := client.NewGatewayClient(&cfg.Gateway)
	identityClient := client.NewIdentityClient(&cfg.Identity)

	orderRepo := repository.NewOrderRepository(db)
	profileRepo := repository.NewProfileRepository(db)

	linker := identity.NewLinker(profileRepo, identityClient, logger)
	resolver := auth.NewResolver(identityClient, cfg.Identity.CookieName, logger)

	orderService := service.NewOrderService(
		db,
		gatewayClient,
		orderRepo,
		profileRepo,
		linker,
		cfg.Gateway.KeySecret,
		cfg.Gateway.WebhookSecret,
		logger,
	)

	orderHandler := handler.NewOrderHandler(orderService, resolver, cfg.Environment.IsProduction(), logger)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(orderHandler, logger)

	logger.Info("starting HTTP server", zap.String("addr", serverAddr))
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	logger.Info("signal received, starting graceful shutdown")

	if err := srv.Shutdown(); err != nil {
		logger.Fatal("HTTP server shutdown error", zap.Error(err))
	}
}

func newLogger(cfg config.Log) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
