package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "civicaid/config"
	appcrypto "civicaid/crypto"
	"civicaid/database"
	appserver "civicaid/server"
	"civicaid/services"
	"civicaid/utils"
	websocketpkg "civicaid/websocket"
)

func main() {
	// -addr is how the container entrypoint passes the platform port; it
	// overrides the PORT env when present.
	addr := flag.String("addr", "", "listen address (host:port), overrides PORT")
	flag.Parse()

	utils.InitLogging()

	config := appconfig.LoadConfig()
	if *addr != "" {
		if i := strings.LastIndex(*addr, ":"); i >= 0 && i < len(*addr)-1 {
			config.Port = (*addr)[i+1:]
		}
	}

	startTime := time.Now()

	db, err := database.SetupDatabase(config.DatabaseURL)
	if err != nil {
		log.Fatalf("💥 Database setup failed: %v", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       0,
	})
	defer rdb.Close()

	crypto := appcrypto.NewCryptoService(config.EncryptionKey)
	readyState := appserver.NewReadyState(db, crypto, config, rdb)

	app := appserver.CreateFiberApp(startTime, readyState)

	hub := websocketpkg.NewHub()
	go hub.Run()
	defer hub.Stop()

	appserver.SetupRoutes(app, db, rdb, crypto, config, hub)

	// Standalone deployments without the worker binary run retention inline.
	if appconfig.GetEnvAsBool("INLINE_CLEANUP", false) {
		services.StartCleanupService(db, services.RetentionConfig{
			RetentionDays: config.RetentionDays,
			StorageDir:    config.StorageDir,
		})
	}

	// Readiness checks run in the background so the listener comes up fast
	// and /health/ready reports progress honestly.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️ Redis not reachable at startup: %v", err)
		} else {
			readyState.MarkRedisReady()
		}

		var stationCount int
		if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM police_stations").Scan(&stationCount); err != nil {
			log.Printf("⚠️ Police station seed check failed: %v", err)
		} else {
			log.Printf("✅ %d police stations available for lookup", stationCount)
			readyState.MarkStationsReady()
		}

		reviewerSvc := services.NewReviewerService(db, crypto, services.ReviewerConfig{
			Enabled:  config.DefaultReviewerEnabled,
			Email:    config.DefaultReviewerEmail,
			Password: config.DefaultReviewerPassword,
		})
		if err := reviewerSvc.CreateDefaultReviewer(ctx); err != nil {
			log.Printf("⚠️ Failed to seed default reviewer: %v", err)
		} else {
			readyState.MarkReviewerReady()
		}
	}()

	if err := appserver.ListenWithIPv6Fallback(app, config.Port, startTime); err != nil {
		log.Fatalf("💥 Server failed to start: %v", err)
	}
}
