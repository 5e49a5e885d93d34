package main

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/phuslu/log"

	"docchat/internal/api"
	"docchat/internal/config"
	"docchat/internal/llm"
	"docchat/internal/service"
	"docchat/internal/store"
)

func main() {
	cfg := config.Load()

	log.DefaultLogger = log.Logger{
		Level:      log.ParseLevel(cfg.LogLevel),
		TimeFormat: "15:04:05",
		Writer:     &log.ConsoleWriter{ColorOutput: true},
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	dbStore, err := store.New(cfg.PgConn, cfg.EmbedDim)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open vector store")
	}
	defer dbStore.Close()

	provider, err := llm.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider")
	}

	rag := service.New(dbStore, provider, cfg)

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // uploads are whole documents
	})
	api.RegisterRoutes(app, rag)

	log.Info().Str("addr", cfg.ServerAddr).Str("provider", cfg.Provider).Msg("server started")
	if err := app.Listen(cfg.ServerAddr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
