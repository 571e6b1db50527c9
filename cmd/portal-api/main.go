package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gridtrade/energy-portal/energy-portal-backend/internal/config"
	"gridtrade/energy-portal/energy-portal-backend/internal/events"
	"gridtrade/energy-portal/energy-portal-backend/internal/ledger"
	"gridtrade/energy-portal/energy-portal-backend/internal/listings"
	"gridtrade/energy-portal/energy-portal-backend/internal/purchases"
	"gridtrade/energy-portal/energy-portal-backend/internal/trading"
)

func main() {
	// Local development reads the signer key and RPC URL from .env
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.LoadConfig("config.json")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := newLogger(cfg.Logging.Level)
	defer logger.Sync()

	// Connect to the ledger
	ledgerClient, err := ledger.NewClient(ledger.Config{
		RPCURL:          cfg.Ledger.RPCURL,
		ContractAddress: cfg.Ledger.ContractAddress,
		ChainID:         cfg.Ledger.ChainID,
		SignerKey:       cfg.Ledger.SignerKey,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to ledger", zap.Error(err))
	}
	if ledgerClient.Session() == nil {
		logger.Warn("No signer key configured; serving in unavailable mode until one is provided")
	} else {
		logger.Info("Ledger session established", zap.String("address", ledgerClient.SessionAddress()))
	}

	// Projection change feed
	bus := events.NewBus(logger)
	wsManager := events.NewManager(bus, logger)

	// Initialize Listing Projection Module
	listingService := listings.NewService(ledgerClient, logger)
	listingHandler := listings.NewHandler(listingService, logger)

	// Initialize Purchase Aggregation Module
	purchaseService := purchases.NewService(ledgerClient, listingService, logger)
	purchaseHandler := purchases.NewHandler(purchaseService, logger)

	// Initialize Trading Module
	tradingService := trading.NewService(ledgerClient, listingService, bus, logger)
	tradingHandler := trading.NewHandler(tradingService, logger)

	// Background projection refresh
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	refresher := listings.NewRefresher(listingService, cfg.Refresh.Interval, logger)
	if err := refresher.Start(rootCtx); err != nil {
		logger.Fatal("Failed to start projection refresher", zap.Error(err))
	}
	defer refresher.Stop()

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	{
		listingHandler.RegisterRoutes(api)
		purchaseHandler.RegisterRoutes(api)
		tradingHandler.RegisterRoutes(api)
	}

	// Projection change feed
	router.GET("/ws", func(c *gin.Context) {
		wsManager.HandleConnection(c.Writer, c.Request)
	})

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"session":   ledgerClient.Session() != nil,
			"timestamp": time.Now(),
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen: %s\n", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.Int("port", cfg.Server.Port))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")
	rootCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown:", zap.Error(err))
	}

	logger.Info("Server exiting")
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}
