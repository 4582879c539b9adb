package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// RetentionConfig controls the maintenance pass run by the worker process.
type RetentionConfig struct {
	// RetentionDays is how long closed submissions and audit rows are kept.
	RetentionDays int
	// StorageDir is scanned for upload files no submission references anymore.
	StorageDir string
}

// StartCleanupService runs retention tasks in the background every 24 hours.
// The worker binary calls RunCleanupTasks directly on its own schedule; this
// is the in-process fallback used when the server runs standalone.
func StartCleanupService(db Database, cfg RetentionConfig) {
	go func() {
		ctx := context.Background()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		RunCleanupTasks(ctx, db, cfg)

		for range ticker.C {
			RunCleanupTasks(ctx, db, cfg)
		}
	}()
}

// RunCleanupTasks performs one maintenance pass over the database and storage.
func RunCleanupTasks(ctx context.Context, db Database, cfg RetentionConfig) {
	log.Println("🧹 Running scheduled cleanup tasks...")

	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 90
	}

	// Session cleanup is handled by Redis TTL.

	// Reset failed login attempts for reviewers who are no longer locked
	result, err := db.Exec(ctx, `
		UPDATE users
		SET failed_attempts = 0, locked_until = NULL
		WHERE locked_until IS NOT NULL AND locked_until < NOW()
	`)
	if err != nil {
		log.Printf("⚠️ Failed to reset failed login attempts: %v", err)
	} else if result.RowsAffected() > 0 {
		log.Printf("✅ Reset failed login attempts for %d reviewers", result.RowsAffected())
	}

	// Close complaints that were forwarded long ago and never updated
	result, err = db.Exec(ctx, fmt.Sprintf(`
		UPDATE complaints
		SET status = 'closed', updated_at = NOW()
		WHERE status = 'forwarded' AND updated_at < NOW() - INTERVAL '%d days'
	`, retention))
	if err != nil {
		log.Printf("⚠️ Failed to close stale complaints: %v", err)
	} else if result.RowsAffected() > 0 {
		log.Printf("✅ Closed %d stale forwarded complaints", result.RowsAffected())
	}

	// Prune audit rows past retention
	result, err = db.Exec(ctx, fmt.Sprintf(`
		DELETE FROM audit_log
		WHERE created_at < NOW() - INTERVAL '%d days'
	`, retention))
	if err != nil {
		log.Printf("⚠️ Failed to prune audit log: %v", err)
	} else if result.RowsAffected() > 0 {
		log.Printf("🗑️ Pruned %d audit log rows older than %d days", result.RowsAffected(), retention)
	}

	if cfg.StorageDir != "" {
		purgeOrphanedUploads(ctx, db, cfg.StorageDir)
	}

	log.Println("🎯 Cleanup tasks completed successfully")
}

// purgeOrphanedUploads removes files under the uploads dir that no complaint
// or violation row references. Files younger than a day are skipped so
// in-flight submissions are never raced.
func purgeOrphanedUploads(ctx context.Context, db Database, storageDir string) {
	uploadsDir := filepath.Join(storageDir, "uploads")
	entries, err := os.ReadDir(uploadsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️ Failed to scan uploads dir: %v", err)
		}
		return
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(uploadsDir, entry.Name())
		var refs int
		err = db.QueryRow(ctx, `
			SELECT (SELECT COUNT(*) FROM complaints WHERE aadhaar_photo_path = $1)
			     + (SELECT COUNT(*) FROM traffic_violations WHERE photo_path = $1)
		`, path).Scan(&refs)
		if err != nil {
			log.Printf("⚠️ Failed to check upload references for %s: %v", entry.Name(), err)
			continue
		}
		if refs > 0 {
			continue
		}
		if err := os.Remove(path); err != nil {
			log.Printf("⚠️ Failed to remove orphaned upload %s: %v", entry.Name(), err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Printf("🗑️ Removed %d orphaned upload files", removed)
	}
}
