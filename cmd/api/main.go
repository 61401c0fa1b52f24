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

	"github.com/Dan9191/card-rates/internal/config"
	"github.com/Dan9191/card-rates/internal/handler"
	"github.com/Dan9191/card-rates/internal/integrations/fred"
	"github.com/Dan9191/card-rates/internal/middleware"
	"github.com/Dan9191/card-rates/internal/repository"
	"github.com/Dan9191/card-rates/internal/service"
	"github.com/Dan9191/card-rates/internal/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	if err := cfg.CheckCredential(); err != nil {
		logger.Warn(err.Error())
	}

	// Initialize layers
	fredClient := fred.NewClient(cfg, logger)
	cache := repository.NewSeriesCache(fredClient, cfg.CacheTTL)
	svc := service.NewService(cache, utils.NewSeriesGenerator(), logger, cfg)
	h := handler.NewHandler(svc, cache, logger)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	h.Routes(r)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: r,
		// both series may each wait for a full fetch timeout
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2*cfg.FetchTimeout + 5*time.Second,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":      addr,
			"live":      cfg.LiveConfigured(),
			"cache_ttl": cfg.CacheTTL.String(),
		}).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Graceful shutdown failed: %v", err)
	}
	logger.Info("Server stopped")
}
