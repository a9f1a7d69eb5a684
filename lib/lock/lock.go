package lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// FileLock provides a simple file-based locking mechanism. It guards
// periodic jobs against overlapping runs, including runs started by other
// processes on the same host.
type FileLock struct {
	dir    string
	logger *slog.Logger
}

// NewFileLock creates a new file-based lock instance rooted in dir. An
// empty dir falls back to a per-host temp directory.
func NewFileLock(dir string, logger *slog.Logger) *FileLock {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "boxbox-locks")
	}
	return &FileLock{
		dir:    dir,
		logger: logger,
	}
}

// TryLock attempts to acquire a lock with the given key and timeout.
// Returns false without error when the timeout passes with the lock still
// held elsewhere.
func (fl *FileLock) TryLock(ctx context.Context, key string, timeout time.Duration) (bool, error) {
	lockFile := fl.lockFilePath(key)

	if err := os.MkdirAll(filepath.Dir(lockFile), 0750); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		// O_EXCL makes creation the atomic acquire step.
		// #nosec G304 - lockFile is generated through controlled logic in lockFilePath
		file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err != nil {
			if os.IsExist(err) {
				// A holder that died leaves its file behind; treat files
				// older than twice the timeout as stale.
				if fl.isLockStale(lockFile, timeout*2) {
					fl.logger.Warn("Removing stale lock file", slog.String("file", lockFile))
					if err := os.Remove(lockFile); err != nil {
						fl.logger.Error("Failed to remove stale lock file", slog.String("file", lockFile), slog.Any("error", err))
					}
					continue
				}

				select {
				case <-ctx.Done():
					return false, ctx.Err()
				case <-time.After(100 * time.Millisecond):
					continue
				}
			}
			return false, fmt.Errorf("failed to create lock file: %w", err)
		}

		// Record timestamp and pid for debugging stale locks.
		if _, err := fmt.Fprintf(file, "%d\n%d\n", time.Now().Unix(), os.Getpid()); err != nil {
			if closeErr := file.Close(); closeErr != nil {
				fl.logger.Error("Failed to close lock file after write error", slog.String("file", lockFile), slog.Any("error", closeErr))
			}
			return false, fmt.Errorf("failed to write to lock file: %w", err)
		}
		if err := file.Close(); err != nil {
			return false, fmt.Errorf("failed to close lock file: %w", err)
		}

		fl.logger.Debug("Acquired lock", slog.String("key", key), slog.String("file", lockFile))
		return true, nil
	}

	return false, nil // Timeout exceeded
}

// Unlock releases the lock for the given key.
func (fl *FileLock) Unlock(ctx context.Context, key string) error {
	lockFile := fl.lockFilePath(key)

	if err := os.Remove(lockFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	fl.logger.Debug("Released lock", slog.String("key", key), slog.String("file", lockFile))
	return nil
}

// lockFilePath returns the file path for a lock key.
func (fl *FileLock) lockFilePath(key string) string {
	// Clean the path to prevent path traversal through the key
	return filepath.Clean(filepath.Join(fl.dir, key+".lock"))
}

// isLockStale checks if a lock file is older than the given duration.
func (fl *FileLock) isLockStale(lockFile string, staleDuration time.Duration) bool {
	info, err := os.Stat(lockFile)
	if err != nil {
		return true // If we can't stat it, consider it stale
	}

	return time.Since(info.ModTime()) > staleDuration
}
