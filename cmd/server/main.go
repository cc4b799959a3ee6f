package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/invoicedesk/invoicedesk/internal/api"
	"github.com/invoicedesk/invoicedesk/internal/config"
	"github.com/invoicedesk/invoicedesk/internal/export"
	"github.com/invoicedesk/invoicedesk/internal/extraction"
	"github.com/invoicedesk/invoicedesk/internal/reconcile"
	"github.com/invoicedesk/invoicedesk/internal/repository"
	"github.com/invoicedesk/invoicedesk/internal/retrieval"
	"github.com/invoicedesk/invoicedesk/internal/worker"
	"github.com/invoicedesk/invoicedesk/pkg/database"
	"github.com/invoicedesk/invoicedesk/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting invoice desk server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Fatal("Failed to create database directory", zap.Error(err))
	}
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Create necessary directories
	if err := os.MkdirAll(cfg.Upload.Dir, 0o755); err != nil {
		logger.Fatal("Failed to create upload directory", zap.Error(err))
	}

	// Initialize repositories
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	supplierRepo, err := repository.NewPartyRepository(db.DB, repository.TableSuppliers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize supplier repository", zap.Error(err))
	}
	customerRepo, err := repository.NewPartyRepository(db.DB, repository.TableCustomers, logger)
	if err != nil {
		logger.Fatal("Failed to initialize customer repository", zap.Error(err))
	}
	itemRepo := repository.NewItemRepository(db.DB, logger)
	lineItemRepo := repository.NewLineItemRepository(db.DB, logger)

	// Initialize services
	reader := extraction.NewDocumentReader(logger)
	extractor := extraction.NewExtractor(extraction.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
	}, logger)

	persister := reconcile.NewService(db, invoiceRepo, supplierRepo, customerRepo, itemRepo, lineItemRepo, logger)
	retriever := retrieval.NewService(invoiceRepo, supplierRepo, customerRepo, lineItemRepo, logger)
	exporter := export.NewExporter(retriever, logger)

	// Initialize background workers
	registry := worker.NewRegistry()
	processor := worker.NewBatchProcessor(registry, reader, extractor, cfg.Upload.Workers, logger)

	manager := worker.NewManager(logger)
	manager.Register(processor)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.StartAll(ctx); err != nil {
		logger.Fatal("Failed to start workers", zap.Error(err))
	}

	// Initialize HTTP server
	handlers := api.NewHandlers(
		registry,
		processor,
		reader,
		extractor,
		persister,
		retriever,
		exporter,
		supplierRepo,
		cfg.Upload.Dir,
		cfg.Upload.MaxBatchFiles,
		logger,
	)
	server := api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handlers, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("Shutting down server...")
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	cancel()
	if err := server.Stop(); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	manager.StopAll()

	logger.Info("Server exited successfully")
}
