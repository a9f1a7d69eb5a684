package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/boxboxhq/boxbox/lib/quota"
	"github.com/boxboxhq/boxbox/lib/thumbs"
	"github.com/boxboxhq/boxbox/lib/validation"
	"github.com/boxboxhq/boxbox/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", slog.Any("error", err))
	}
}

// HandleThumbnail runs the thumbnail resolver for a race. Failures inside
// the resolver degrade to fallback tiers, so this never errors for
// existing races.
func HandleThumbnail(db *gorm.DB, resolver *thumbs.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			validation.WriteError(w, fmt.Errorf("invalid race id"), http.StatusBadRequest)
			return
		}

		var race models.Race
		if err := db.First(&race, id).Error; err != nil {
			validation.WriteError(w, fmt.Errorf("race not found"), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, resolver.Resolve(req.Context(), &race))
	}
}

// reviewRequest is the create payload, accepted as JSON or form fields.
type reviewRequest struct {
	Rating   *int   `json:"rating,omitempty"`
	Body     string `json:"body"`
	ParentID *uint  `json:"parent_id,omitempty"`
}

func decodeReviewRequest(req *http.Request) (*reviewRequest, error) {
	if strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
		var payload reviewRequest
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}
		return &payload, nil
	}

	if err := req.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form: %w", err)
	}

	payload := reviewRequest{Body: req.PostFormValue("body")}
	if v := req.PostFormValue("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid rating: %w", err)
		}
		payload.Rating = &rating
	}
	if v := req.PostFormValue("parent_id"); v != "" {
		parentID, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid parent_id: %w", err)
		}
		pid := uint(parentID)
		payload.ParentID = &pid
	}

	return &payload, nil
}

// HandleCreateReview creates a top-level review (rating required) or a
// reply (rating must be absent, parent must belong to the same race).
func HandleCreateReview(db *gorm.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user := userFromRequest(db, req)
		if user == nil {
			validation.WriteError(w, fmt.Errorf("sign in required"), http.StatusUnauthorized)
			return
		}

		raceID, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			validation.WriteError(w, fmt.Errorf("invalid race id"), http.StatusBadRequest)
			return
		}

		var race models.Race
		if err := db.First(&race, raceID).Error; err != nil {
			validation.WriteError(w, fmt.Errorf("race not found"), http.StatusNotFound)
			return
		}

		payload, err := decodeReviewRequest(req)
		if err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		if err := validation.ValidateReviewBody(payload.Body); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		review := models.Review{
			RaceID: race.ID,
			UserID: user.ID,
			Body:   strings.TrimSpace(payload.Body),
		}

		if payload.ParentID != nil {
			// A reply: no rating, depth chains off the parent.
			if payload.Rating != nil {
				validation.WriteError(w, fmt.Errorf("replies cannot carry a rating"), http.StatusBadRequest)
				return
			}

			var parent models.Review
			if err := db.First(&parent, *payload.ParentID).Error; err != nil {
				validation.WriteError(w, fmt.Errorf("parent review not found"), http.StatusBadRequest)
				return
			}
			if parent.RaceID != race.ID {
				validation.WriteError(w, fmt.Errorf("parent review belongs to another race"), http.StatusBadRequest)
				return
			}

			review.ParentID = payload.ParentID
			review.Depth = parent.Depth + 1
		} else {
			if err := validation.ValidateRating(payload.Rating); err != nil {
				validation.WriteError(w, err, http.StatusBadRequest)
				return
			}
			review.Rating = payload.Rating
		}

		if err := db.Create(&review).Error; err != nil {
			logger.Error("Failed to create review", slog.Any("error", err))
			validation.WriteError(w, fmt.Errorf("failed to save review"), http.StatusInternalServerError)
			return
		}

		// Form posts come from the race page; send the browser back there.
		if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/json") {
			http.Redirect(w, req, fmt.Sprintf("/race/%d", race.ID), http.StatusSeeOther)
			return
		}

		writeJSON(w, http.StatusCreated, review)
	}
}

// HandleListReviews returns a race's review forest as JSON.
func HandleListReviews(db *gorm.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		raceID, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			validation.WriteError(w, fmt.Errorf("invalid race id"), http.StatusBadRequest)
			return
		}

		forest, err := loadReviewForest(db, logger, uint(raceID))
		if err != nil {
			logger.Error("Failed to load reviews", slog.Any("error", err))
			validation.WriteError(w, fmt.Errorf("failed to load reviews"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, forest)
	}
}

// HandleUpdateReview edits the body of the caller's own review and marks
// it edited.
func HandleUpdateReview(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user := userFromRequest(db, req)
		if user == nil {
			validation.WriteError(w, fmt.Errorf("sign in required"), http.StatusUnauthorized)
			return
		}

		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			validation.WriteError(w, fmt.Errorf("invalid review id"), http.StatusBadRequest)
			return
		}

		var review models.Review
		if err := db.First(&review, id).Error; err != nil {
			validation.WriteError(w, fmt.Errorf("review not found"), http.StatusNotFound)
			return
		}
		if review.UserID != user.ID {
			validation.WriteError(w, fmt.Errorf("not your review"), http.StatusForbidden)
			return
		}

		var payload struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			validation.WriteError(w, fmt.Errorf("invalid JSON body: %w", err), http.StatusBadRequest)
			return
		}
		if err := validation.ValidateReviewBody(payload.Body); err != nil {
			validation.WriteError(w, err, http.StatusBadRequest)
			return
		}

		review.Body = strings.TrimSpace(payload.Body)
		review.Edited = true
		if err := db.Save(&review).Error; err != nil {
			validation.WriteError(w, fmt.Errorf("failed to save review"), http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, review)
	}
}

// HandleDeleteReview deletes the caller's own review. Admins may delete
// any review.
func HandleDeleteReview(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user := userFromRequest(db, req)
		if user == nil {
			validation.WriteError(w, fmt.Errorf("sign in required"), http.StatusUnauthorized)
			return
		}

		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			validation.WriteError(w, fmt.Errorf("invalid review id"), http.StatusBadRequest)
			return
		}

		var review models.Review
		if err := db.First(&review, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				validation.WriteError(w, fmt.Errorf("review not found"), http.StatusNotFound)
			} else {
				validation.WriteError(w, fmt.Errorf("failed to load review"), http.StatusInternalServerError)
			}
			return
		}
		if review.UserID != user.ID && !user.Admin {
			validation.WriteError(w, fmt.Errorf("not your review"), http.StatusForbidden)
			return
		}

		if err := db.Delete(&review).Error; err != nil {
			validation.WriteError(w, fmt.Errorf("failed to delete review"), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleQuota reports the video API quota state for the admin widget.
func HandleQuota(tracker *quota.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":       tracker.Status(),
			"percent_used": tracker.PercentUsed(),
			"remaining":    tracker.Remaining(),
		})
	}
}
