package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"go.uber.org/zap"

	"github.com/orsolab/pdfcsv/config"
	"github.com/orsolab/pdfcsv/llm_service"
	"github.com/orsolab/pdfcsv/logging"
	"github.com/orsolab/pdfcsv/pipeline"
	"github.com/orsolab/pdfcsv/rasterizer"
	"github.com/orsolab/pdfcsv/server"
)

func main() {
	cfg := config.Load()

	if cfg.OpenRouterAPIKey == "" {
		log.Fatal("OPENROUTER_API_KEY not set in environment variables")
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	openRouter := llm_service.NewOpenRouterService(llm_service.OpenRouterConfig{
		APIURL:      cfg.OpenRouterAPIURL,
		APIKey:      cfg.OpenRouterAPIKey,
		VisionModel: cfg.VisionModel,
		ChatModel:   cfg.ChatModel,
		Timeout:     cfg.LLMTimeout,
		MaxRetries:  cfg.LLMMaxRetries,
	}, zapLogger)

	p := pipeline.New(
		rasterizer.NewFitzRasterizer(cfg.RasterDPI, logger),
		openRouter,
		openRouter,
		logger,
	)

	r := server.SetupRoutes(p, cfg.MaxUploadMB, logger)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, cfg)
	} else {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      n,
			IdleTimeout:  time.Minute,
			ReadTimeout:  30 * time.Second,
			// The pipeline blocks on remote model calls; give responses room.
			WriteTimeout: 10 * time.Minute,
		}
		logger.Info("Starting server",
			slog.String("port", cfg.HTTPPort),
			slog.String("vision_model", cfg.VisionModel),
			slog.String("chat_model", cfg.ChatModel))
		server.ServeDevelopment(srv)
	}
}

func initLogger(cfg config.Config) (*slog.Logger, error) {
	handler, err := logging.NewDailyFileHandler(cfg.LogDir, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	if err != nil {
		return nil, err
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}
