package main

import (
	"context"
	"flag"
	"log"
	"time"

	appconfig "civicaid/config"
	"civicaid/database"
	"civicaid/metrics"
	"civicaid/services"
	"civicaid/utils"
)

// The maintenance worker runs retention and cleanup passes on a fixed
// interval. It connects without running migrations; the server owns the
// schema and the worker must not race it at startup.
func main() {
	interval := flag.Duration("interval", 24*time.Hour, "time between maintenance passes")
	once := flag.Bool("once", false, "run a single pass and exit")
	flag.Parse()

	utils.InitLogging()

	config := appconfig.LoadConfig()

	db, err := database.SetupDatabaseFast(config.DatabaseURL)
	if err != nil {
		log.Fatalf("💥 Worker database setup failed: %v", err)
	}
	defer db.Close()

	retention := services.RetentionConfig{
		RetentionDays: config.RetentionDays,
		StorageDir:    config.StorageDir,
	}

	runPass := func() {
		start := time.Now()
		services.RunCleanupTasks(context.Background(), db, retention)
		metrics.RecordCleanupRun("success", time.Since(start))
	}

	runPass()
	if *once {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for range ticker.C {
		runPass()
	}
}
