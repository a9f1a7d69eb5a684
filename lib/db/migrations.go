package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/boxboxhq/boxbox/models"
	"gorm.io/gorm"
)

// Tables and indexes left over from earlier schema revisions. Dropped on
// startup if present.
var (
	tablesToDrop = []string{
		"race_cards",
		"race_reviews",
		"review_votes",
		"video_cache",
		"youtube_cache",
	}
	indexesToDrop = []string{
		"idx_races_name_year",
		"idx_reviews_race",
		"idx_video_cache_key",
	}
)

// RunMigrations runs all database migrations.
func RunMigrations(db *gorm.DB, logger *slog.Logger) error {
	ctx := context.Background()

	// Enable SQLite optimizations
	if err := enableSQLiteOptimizations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to enable SQLite optimizations: %w", err)
	}

	// Auto-migrate the schema first to ensure tables exist
	if err := db.AutoMigrate(&models.User{}, &models.Race{}, &models.Review{}, &models.ThumbnailCache{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Drop old tables
	for _, table := range tablesToDrop {
		if err := dropTableIfExists(ctx, db, table, logger); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	if err := dropIndexes(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to drop indexes: %w", err)
	}

	// Create additional indexes and constraints
	if err := createAdditionalIndexes(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to create additional indexes: %w", err)
	}

	return nil
}

// dropIndexes drops the indexes if they exist
func dropIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	for _, index := range indexesToDrop {
		if err := db.WithContext(ctx).Exec("DROP INDEX IF EXISTS " + index).Error; err != nil {
			return fmt.Errorf("failed to drop index %s: %w", index, err)
		}
		logger.InfoContext(ctx, "Dropped index", slog.String("index", index))
	}
	return nil
}

// dropTableIfExists drops a table if it exists
func dropTableIfExists(ctx context.Context, db *gorm.DB, tableName string, logger *slog.Logger) error {
	if err := db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + tableName).Error; err != nil {
		return fmt.Errorf("failed to drop table: %w", err)
	}
	logger.Info("Successfully dropped table", slog.String("table", tableName))

	return nil
}

// enableSQLiteOptimizations enables SQLite-specific optimizations
func enableSQLiteOptimizations(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	optimizations := []string{
		"PRAGMA journal_mode=WAL",    // Enable WAL mode for better concurrency
		"PRAGMA synchronous=NORMAL",  // Faster writes while maintaining safety
		"PRAGMA cache_size=1000",     // Increase cache size
		"PRAGMA foreign_keys=ON",     // Enable foreign key constraints
		"PRAGMA temp_store=MEMORY",   // Store temporary tables in memory
		"PRAGMA mmap_size=134217728", // Enable memory-mapped I/O (128MB)
		"PRAGMA optimize",            // Enable query optimization
	}

	for _, pragma := range optimizations {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			logger.Warn("Failed to execute pragma", slog.String("pragma", pragma), slog.Any("error", err))
		} else {
			logger.Info("Successfully executed pragma", slog.String("pragma", pragma))
		}
	}

	return nil
}

// createAdditionalIndexes creates additional indexes for performance
func createAdditionalIndexes(ctx context.Context, db *gorm.DB, logger *slog.Logger) error {
	// Additional composite indexes for common queries
	additionalIndexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_races_season_date ON races(season, date)",
		"CREATE INDEX IF NOT EXISTS idx_reviews_race_created ON reviews(race_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_reviews_parent_created ON reviews(parent_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_thumbnail_cache_cached_at ON thumbnail_caches(cached_at)",
	}

	for _, indexSQL := range additionalIndexes {
		if err := db.WithContext(ctx).Exec(indexSQL).Error; err != nil {
			logger.Warn("Failed to create index", slog.String("sql", indexSQL), slog.Any("error", err))
		} else {
			logger.Info("Successfully created index", slog.String("sql", indexSQL))
		}
	}

	return nil
}
