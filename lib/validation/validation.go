package validation

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

// seasonRegex matches four-digit season years.
var seasonRegex = regexp.MustCompile(`^\d{4}$`)

const (
	// MaxReviewBodyLength caps review bodies; matches the column size used
	// by the hosted schema this replaced.
	MaxReviewBodyLength = 4000

	minSeason = 1950
	maxSeason = 2100
)

// ValidateSeason checks that a season string is a plausible championship
// year. The first championship ran in 1950.
func ValidateSeason(season string) (int, error) {
	if !seasonRegex.MatchString(season) {
		return 0, fmt.Errorf("invalid season format: %s, expected YYYY", season)
	}

	var year int
	if _, err := fmt.Sscanf(season, "%d", &year); err != nil {
		return 0, fmt.Errorf("invalid season: %w", err)
	}
	if year < minSeason || year > maxSeason {
		return 0, fmt.Errorf("season %d out of range", year)
	}

	return year, nil
}

// ValidateRating checks a top-level review rating.
func ValidateRating(rating *int) error {
	if rating == nil {
		return fmt.Errorf("rating is required")
	}
	if *rating < 1 || *rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5")
	}
	return nil
}

// ValidateReviewBody checks that a review body is non-empty after trimming
// and within the allowed length.
func ValidateReviewBody(body string) error {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return fmt.Errorf("body must not be empty")
	}
	if len(trimmed) > MaxReviewBodyLength {
		return fmt.Errorf("body must be at most %d characters", MaxReviewBodyLength)
	}
	return nil
}

// ValidatePagination validates pagination parameters to ensure they are
// within acceptable ranges.
func ValidatePagination(page, size int) error {
	if page < 1 {
		return fmt.Errorf("page must be greater than 0")
	}
	if size < 1 || size > 100 {
		return fmt.Errorf("size must be between 1 and 100")
	}
	return nil
}

// WriteError writes a validation error response to the HTTP response
// writer as JSON.
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
	}); err != nil {
		slog.Error("Failed to encode error response", slog.Any("error", err))
	}
}
