package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/tunevault-go/api"
	"github.com/yourusername/tunevault-go/internal/app"
	"github.com/yourusername/tunevault-go/internal/domain"
	"github.com/yourusername/tunevault-go/internal/infrastructure"
	"github.com/yourusername/tunevault-go/pkg/logger"
)

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
		MaxSizeMB:  config.Logging.MaxSizeMB,
		MaxBackups: config.Logging.MaxBackups,
		MaxAgeDays: config.Logging.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting tunevault server",
		zap.String("version", "1.0.0"),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Int("concurrent_limit", config.Downloads.ConcurrentLimit))

	if err := createDirectories(config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	repo, err := infrastructure.NewSQLiteRepository(config.Library.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	notifier := infrastructure.NewNotificationService(&config.Notify, log)
	runner := infrastructure.NewYTDLPRunner(&config.Downloads, &config.Library, log)
	resolver := infrastructure.NewYTDLPResolver(&config.Downloads, log)
	bus := app.NewEventBus(log)
	defer bus.Close()

	orchestrator := app.NewOrchestrator(repo, repo, runner, resolver, bus, notifier, &config.Downloads, log)

	// jobs left mid-flight by the previous process run become retryable
	// failures before any new work is accepted
	if err := orchestrator.RecoverInterrupted(); err != nil {
		log.Fatal("Failed to recover interrupted jobs", zap.Error(err))
	}

	router := api.SetupRouter(orchestrator, bus, log)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// cancels running fetchers and waits for their terminal records
	orchestrator.Close()

	log.Info("Server exited")
}

func createDirectories(config *domain.Config) error {
	dirs := []string{
		config.Library.BaseDir,
		config.Library.MediaDir,
		config.Library.IncomingDir,
		config.Library.LogsDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
