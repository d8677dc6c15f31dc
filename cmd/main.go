package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yossiovadia/premium-check/internal/config"
	"github.com/yossiovadia/premium-check/internal/constant"
	"github.com/yossiovadia/premium-check/internal/handlers"
	"github.com/yossiovadia/premium-check/internal/logger"
	"github.com/yossiovadia/premium-check/internal/lookup"
	"github.com/yossiovadia/premium-check/internal/metrics"
	"github.com/yossiovadia/premium-check/internal/verify"
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	appLogger := logger.New(cfg.DebugMode)
	defer func() {
		_ = appLogger.Sync() // Ignore sync errors on close, as per zap documentation
	}()

	gin.SetMode(gin.ReleaseMode)
	if cfg.DebugMode {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.DebugMode {
		router.Use(gin.Logger())
		router.Use(cors.New(cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Content-Type", "Accept"},
			ExposeHeaders: []string{"Content-Type", constant.HeaderRequestID},
			AllowOriginFunc: func(origin string) bool {
				return true
			},
			MaxAge: 12 * time.Hour,
		}))
	}

	registerHandlers(router, cfg, appLogger)

	srv, err := newServer(cfg, router)
	if err != nil {
		appLogger.Fatal("Failed to configure server",
			"error", err,
		)
	}

	go func() {
		appLogger.Info("Starting",
			"address", srv.Addr,
			"tls", srv.TLSConfig != nil,
			"lookup_base_url", cfg.Lookup.BaseURL,
			"debug_mode", cfg.DebugMode,
		)
		if err := listenAndServe(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Server failed to start",
				"error", err,
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), constant.DefaultShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown",
			"error", err,
		)
	}

	appLogger.Info("Server exited gracefully")
}

func registerHandlers(router *gin.Engine, cfg *config.Config, appLogger *logger.Logger) {
	appMetrics := metrics.New()

	router.GET("/health", handlers.NewHealthHandler().HealthCheck)
	router.GET("/metrics", gin.WrapH(appMetrics.Handler()))

	lookupClient := lookup.NewClient(
		appLogger.WithFields("component", "lookup"),
		cfg.Lookup.BaseURL,
		lookup.WithHTTPClient(lookup.NewHTTPClient(lookup.DefaultTransportConfig(cfg.Lookup.Timeout))),
		lookup.WithRetryDelay(cfg.Lookup.RetryDelay),
		lookup.WithUserAgent(cfg.Lookup.UserAgent),
		lookup.WithMetrics(appMetrics),
	)

	verifier := verify.NewVerifier(
		appLogger.WithFields("component", "verify"),
		lookupClient,
		verify.WithMaxConcurrency(cfg.Lookup.MaxConcurrency),
		verify.WithMetrics(appMetrics),
	)

	checkHandler := handlers.NewCheckHandler(appLogger, verifier, cfg.MaxBatchSize)

	// The unversioned route is the historical one; keep both.
	router.POST("/check_server", checkHandler.CheckServer)
	router.Group("/v1").POST("/check_server", checkHandler.CheckServer)
}
