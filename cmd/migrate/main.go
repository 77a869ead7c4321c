package main

import (
	"flag"
	"log"

	"roofcrm-backend/config"
	"roofcrm-backend/database"
	"roofcrm-backend/logging"

	"go.uber.org/zap"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of migrating up")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if *down > 0 {
		if err := database.Rollback(cfg.Database.URL, *down, logger); err != nil {
			logger.Fatal("Rollback failed", zap.Error(err))
		}
		return
	}
	if err := database.Migrate(cfg.Database.URL, logger); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
}
