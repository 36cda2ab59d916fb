package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/existflow/clientpulse/internal/app"
	"github.com/existflow/clientpulse/internal/config"
	"github.com/existflow/clientpulse/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Store.DSN = dbURL
		cfg.Store.Driver = "postgres"
		if strings.HasPrefix(dbURL, "mongodb://") || strings.HasPrefix(dbURL, "mongodb+srv://") {
			cfg.Store.Driver = "mongodb"
		}
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, logger.Default())
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			log.Printf("Error closing server: %v", err)
		}
	}()

	log.Printf("clientpulse server starting on %s (%s)", cfg.Server.Addr, cfg.Store.Driver)
	if err := a.Serve(ctx); err != nil {
		log.Printf("Server failed: %v", err)
	}
}
