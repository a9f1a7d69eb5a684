package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"
)

// Status is the tri-state quota health indicator.
type Status string

const (
	StatusOK       Status = "ok"
	StatusLow      Status = "low"
	StatusExceeded Status = "exceeded"

	// lowWatermark is the used fraction at which status degrades to Low.
	lowWatermark = 0.8
)

// state is the persisted counter blob. The file holds exactly this one
// JSON object.
type state struct {
	Count   int       `json:"count"`
	Ceiling int       `json:"ceiling"`
	ResetAt time.Time `json:"reset_at"`
}

// Tracker is a soft self-throttle for the video API's daily call budget.
// It is advisory: nothing prevents a bypassed call, and the counter is
// per-process, so the remote quota is not actually guaranteed across
// deployments. Construct one and pass it to callers; there is no package
// global.
type Tracker struct {
	mu     sync.Mutex
	path   string
	st     state
	now    func() time.Time
	logger *slog.Logger
}

// NewTracker loads (or initializes) a tracker whose state persists at
// path. Ceiling is the configured daily call budget.
func NewTracker(path string, ceiling int, logger *slog.Logger) (*Tracker, error) {
	t := &Tracker{
		path:   path,
		now:    time.Now,
		logger: logger,
		st: state{
			Ceiling: ceiling,
		},
	}
	t.st.ResetAt = nextMidnight(t.now())

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var loaded state
		if err := json.Unmarshal(data, &loaded); err != nil {
			logger.Warn("Ignoring corrupt quota state", slog.String("path", path), slog.Any("error", err))
		} else {
			t.st = loaded
			t.st.Ceiling = ceiling
		}
	case os.IsNotExist(err):
		// First run; fresh state.
	default:
		return nil, fmt.Errorf("failed to read quota state: %w", err)
	}

	t.maybeReset()
	return t, nil
}

// Record counts one external API call and persists the new state.
func (t *Tracker) Record() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()
	t.st.Count++
	t.persistLocked()
}

// Remaining returns the number of calls left in the current day, never
// negative.
func (t *Tracker) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()
	remaining := t.st.Ceiling - t.st.Count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentUsed returns the used fraction of the daily budget as a
// percentage, capped at 100.
func (t *Tracker) PercentUsed() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()
	if t.st.Ceiling <= 0 {
		return 100
	}
	pct := float64(t.st.Count) / float64(t.st.Ceiling) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Status reports the tri-state health of the budget.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()
	switch {
	case t.st.Ceiling <= 0 || t.st.Count >= t.st.Ceiling:
		return StatusExceeded
	case float64(t.st.Count) >= float64(t.st.Ceiling)*lowWatermark:
		return StatusLow
	default:
		return StatusOK
	}
}

// ShouldSkip reports whether callers should skip an external call. The
// check is advisory only.
func (t *Tracker) ShouldSkip() bool {
	return t.Status() == StatusExceeded
}

// Exhaust marks the budget as spent for the rest of the day. Called when
// the remote API reports quota exhaustion regardless of the local count.
func (t *Tracker) Exhaust() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()
	if t.st.Count < t.st.Ceiling {
		t.st.Count = t.st.Ceiling
	}
	t.persistLocked()
}

// Count returns the calls recorded in the current day.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.maybeResetLocked()
	return t.st.Count
}

// maybeReset resets the counter when now has passed the stored reset
// boundary, moving the boundary to the next local midnight.
func (t *Tracker) maybeReset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.maybeResetLocked()
}

func (t *Tracker) maybeResetLocked() {
	now := t.now()
	if now.Before(t.st.ResetAt) {
		return
	}

	t.logger.Debug("Resetting quota counter",
		slog.Int("count", t.st.Count),
		slog.Time("reset_at", t.st.ResetAt))
	t.st.Count = 0
	t.st.ResetAt = nextMidnight(now)
	t.persistLocked()
}

func (t *Tracker) persistLocked() {
	data, err := json.Marshal(t.st)
	if err != nil {
		t.logger.Error("Failed to marshal quota state", slog.Any("error", err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0750); err != nil {
		t.logger.Error("Failed to create quota state directory", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(t.path, data, 0600); err != nil {
		t.logger.Error("Failed to persist quota state", slog.String("path", t.path), slog.Any("error", err))
	}
}

// nextMidnight returns the next local midnight strictly after now.
func nextMidnight(now time.Time) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}
