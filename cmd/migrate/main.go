package main

import (
	"flag"
	"fmt"
	"log"

	"trackscan/internal/config"
	"trackscan/internal/logger"
	"trackscan/internal/repository/sqlite"
	"trackscan/internal/service"
	"trackscan/internal/service/storage"
)

// Backfills the prediction history from annotated results already on disk.
func main() {
	dbPath := flag.String("db", "", "Database path (defaults to DB_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if cfg.DatabasePath == "" {
		log.Fatal("No database path: set DB_PATH or pass -db")
	}

	appLogger, err := logger.NewLogger(cfg.LogDirectory, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer appLogger.Close()

	store, err := storage.NewStore(cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to open result store: %v", err)
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Printf("Backfilling results from %s into %s\n", store.ResultDir(), cfg.DatabasePath)

	repo := sqlite.NewPredictionRepository(db)
	report, err := service.Backfill(store, repo)
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}

	fmt.Printf("Inserted %d predictions, %d already recorded\n", report.Inserted, report.Existing)
	for _, name := range report.Skipped {
		fmt.Printf("Skipped %s (unrecognized name or unreadable image)\n", name)
	}

	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\nDatabase statistics:\n")
		fmt.Printf("   Total predictions: %d\n", stats.TotalPredictions)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
	}
}
