package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"log/slog"

	"gorm.io/gorm"

	"github.com/boxboxhq/boxbox/lib/ergast"
	"github.com/boxboxhq/boxbox/lib/lock"
	"github.com/boxboxhq/boxbox/lib/notes"
	"github.com/boxboxhq/boxbox/models"
)

const lockKey = "race-import"

// ResultsAPI is the slice of the results client the importer needs.
type ResultsAPI interface {
	Season(ctx context.Context, year int) ([]ergast.RaceEntry, error)
	Results(ctx context.Context, year, round int) (*ergast.RaceEntry, error)
}

// Importer scans the results API for newly scheduled races and backfills
// results for races that have been run. Failures are logged, never fatal.
type Importer struct {
	db     *gorm.DB
	api    ResultsAPI
	notes  *notes.Generator
	lock   *lock.FileLock
	logger *slog.Logger
	season func() int
	now    func() time.Time
}

// New wires an importer for the given season supplier. A nil notes
// generator disables recap generation.
func New(db *gorm.DB, api ResultsAPI, gen *notes.Generator, fl *lock.FileLock, season int, logger *slog.Logger) *Importer {
	return &Importer{
		db:     db,
		api:    api,
		notes:  gen,
		lock:   fl,
		logger: logger,
		season: func() int { return season },
		now:    time.Now,
	}
}

// Run executes one import pass, guarded by the file lock so overlapping
// runs (including across processes) are skipped rather than doubled.
func (i *Importer) Run(ctx context.Context) error {
	acquired, err := i.lock.TryLock(ctx, lockKey, time.Second)
	if err != nil {
		return fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !acquired {
		i.logger.Info("Import already running, skipping")
		return nil
	}
	defer func() {
		if err := i.lock.Unlock(ctx, lockKey); err != nil {
			i.logger.Error("Failed to release import lock", slog.Any("error", err))
		}
	}()

	season := i.season()
	if err := i.importSeason(ctx, season); err != nil {
		return err
	}
	return i.backfillResults(ctx, season)
}

// RunPeriodically runs imports on a fixed period until the context ends.
// The first pass runs immediately.
func (i *Importer) RunPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := i.Run(ctx); err != nil {
			i.logger.Error("Import run failed", slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// importSeason inserts races from the season schedule that are not in the
// database yet, matched by (season, round).
func (i *Importer) importSeason(ctx context.Context, season int) error {
	entries, err := i.api.Season(ctx, season)
	if err != nil {
		return fmt.Errorf("failed to fetch season %d: %w", season, err)
	}

	created := 0
	for _, entry := range entries {
		race, err := entry.ToRace()
		if err != nil {
			i.logger.Warn("Skipping malformed schedule entry",
				slog.String("race", entry.RaceName),
				slog.Any("error", err))
			continue
		}

		var existing models.Race
		err = i.db.WithContext(ctx).
			Where("season = ? AND round = ?", race.Season, race.Round).
			First(&existing).Error
		switch {
		case err == nil:
			continue
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := i.db.WithContext(ctx).Create(&race).Error; err != nil {
				i.logger.Warn("Failed to create race",
					slog.String("race", race.Name),
					slog.Any("error", err))
				continue
			}
			created++
		default:
			return fmt.Errorf("failed to look up race %d/%d: %w", race.Season, race.Round, err)
		}
	}

	i.logger.Info("Season import complete",
		slog.Int("season", season),
		slog.Int("scheduled", len(entries)),
		slog.Int("created", created))

	return nil
}

// backfillResults fills winner and podium for past races that have none.
func (i *Importer) backfillResults(ctx context.Context, season int) error {
	var pending []models.Race
	err := i.db.WithContext(ctx).
		Where("season = ? AND date < ? AND winner = ''", season, i.now()).
		Find(&pending).Error
	if err != nil {
		return fmt.Errorf("failed to list races pending results: %w", err)
	}

	for idx := range pending {
		race := &pending[idx]
		entry, err := i.api.Results(ctx, race.Season, race.Round)
		if err != nil {
			// Results often lag the race by a few hours; just wait for
			// the next pass.
			i.logger.Debug("Results not available yet",
				slog.String("race", race.Name),
				slog.Any("error", err))
			continue
		}

		resolved, err := entry.ToRace()
		if err != nil {
			i.logger.Warn("Skipping malformed results entry",
				slog.String("race", race.Name),
				slog.Any("error", err))
			continue
		}
		if resolved.Winner == "" {
			continue
		}

		race.Winner = resolved.Winner
		race.PodiumP1 = resolved.PodiumP1
		race.PodiumP2 = resolved.PodiumP2
		race.PodiumP3 = resolved.PodiumP3

		if race.Notes == "" && i.notes != nil {
			recap, err := i.notes.Recap(ctx, race)
			if err != nil {
				i.logger.Debug("Recap generation failed",
					slog.String("race", race.Name),
					slog.Any("error", err))
			} else {
				race.Notes = recap
			}
		}

		if err := i.db.WithContext(ctx).Save(race).Error; err != nil {
			i.logger.Warn("Failed to save race results",
				slog.String("race", race.Name),
				slog.Any("error", err))
			continue
		}

		i.logger.Info("Backfilled race results",
			slog.String("race", race.Name),
			slog.String("winner", race.Winner))
	}

	return nil
}
