package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/docuglot/docuglot/internal/analysis"
	"github.com/docuglot/docuglot/internal/common"
	"github.com/docuglot/docuglot/internal/export"
	"github.com/docuglot/docuglot/internal/ocr"
	"github.com/docuglot/docuglot/internal/orchestrator"
	"github.com/docuglot/docuglot/internal/repository"
	"github.com/docuglot/docuglot/internal/server"
	"github.com/docuglot/docuglot/internal/storage"
	"github.com/docuglot/docuglot/internal/translate"
	"github.com/docuglot/docuglot/internal/translate/openai"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration invalid, refusing to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("database open failed", "error", err)
		os.Exit(1)
	}
	defer repository.Close(pool, logger)

	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}

	jobsRepo := repository.NewJobRepository(pool, logger)
	assetsRepo := repository.NewAssetRepository(pool, logger)
	resultsRepo := repository.NewResultRepository(pool, logger)

	blobs, err := storage.NewFileStore(cfg.Storage.BasePath)
	if err != nil {
		logger.Error("storage setup failed", "error", err)
		os.Exit(1)
	}

	var extractor ocr.Extractor
	switch cfg.OCR.Engine {
	case "tesseract":
		extractor = ocr.NewTesseractExtractor(ocr.TesseractConfig{
			Tesseract: cfg.OCR.Tesseract,
			Pdftoppm:  cfg.OCR.Pdftoppm,
			Language:  cfg.OCR.Language,
			DPI:       cfg.OCR.DPI,
		}, logger)
	default:
		extractor = ocr.NewMockExtractor(logger)
	}

	var translator translate.Translator
	switch cfg.Translate.Provider {
	case "openai":
		translator = openai.NewClient(openai.Config{
			APIKey:      cfg.Translate.APIKey,
			BaseURL:     cfg.Translate.BaseURL,
			Model:       cfg.Translate.Model,
			Temperature: cfg.Translate.Temperature,
			Timeout:     cfg.Translate.Timeout,
		}, logger)
	default:
		translator = translate.NewNoop()
	}
	logger.Info("adapters configured", "ocr_engine", cfg.OCR.Engine, "translator", translator.Name())

	validator, err := analysis.NewValidator()
	if err != nil {
		logger.Error("result schema compile failed", "error", err)
		os.Exit(1)
	}

	orch := orchestrator.New(
		orchestrator.Config{
			MaxConcurrentJobs: cfg.Worker.MaxConcurrentJobs,
			JobTimeout:        cfg.Worker.JobTimeout,
		},
		logger,
		jobsRepo, assetsRepo, resultsRepo,
		blobs, extractor, translator, validator,
		orchestrator.NewListenSource(pool, cfg.Worker.NotifyChannel, logger),
		orchestrator.NewPollingSource(jobsRepo, cfg.Worker.PollInterval, logger),
	)

	// Periodic recovery of jobs stranded in processing by a crashed worker.
	c := cron.New()
	if _, err := c.AddFunc(cfg.Worker.StaleSweepCron, func() {
		orch.RequeueStale(ctx, cfg.Worker.StaleAfter)
	}); err != nil {
		logger.Error("stale sweep schedule invalid", "cron", cfg.Worker.StaleSweepCron, "error", err)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	exportSvc := export.NewService(jobsRepo, resultsRepo, logger)
	app := server.NewApp(jobsRepo, assetsRepo, resultsRepo, exportSvc, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("orchestrator stopped with error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
