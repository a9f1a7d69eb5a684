package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/boxboxhq/boxbox/handlers/templates"
	"github.com/boxboxhq/boxbox/lib/importer"
	"github.com/boxboxhq/boxbox/lib/quota"
	"github.com/boxboxhq/boxbox/lib/reviews"
	"github.com/boxboxhq/boxbox/lib/types"
	"github.com/boxboxhq/boxbox/lib/validation"
	"github.com/boxboxhq/boxbox/models"
)

// userCookie names the cookie carrying the signed-in user's ID. The real
// auth provider is a collaborator; this is the thin stand-in at the
// boundary.
const userCookie = "boxbox_user"

type errorData struct {
	Message string
}

func renderError(w http.ResponseWriter, message string, status int) {
	tmpl, err := templates.ParseTemplates("base.html", "error.html")
	if err != nil {
		slog.Error("Failed to parse error template", slog.Any("error", err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base.html", errorData{Message: message}); err != nil {
		slog.Error("Failed to execute error template", slog.Any("error", err))
	}
}

// render parses base plus one page template and executes it.
func render(w http.ResponseWriter, page string, data interface{}) {
	tmpl, err := templates.ParseTemplates("base.html", page)
	if err != nil {
		slog.Error("Failed to parse template", slog.String("page", page), slog.Any("error", err))
		renderError(w, "Something went wrong while loading the page.", http.StatusInternalServerError)
		return
	}

	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		slog.Error("Failed to execute template", slog.String("page", page), slog.Any("error", err))
	}
}

// userFromRequest resolves the cookie to a profile. Returns nil when the
// request is anonymous or the profile is gone.
func userFromRequest(db *gorm.DB, req *http.Request) *models.User {
	cookie, err := req.Cookie(userCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	var user models.User
	if err := db.Where("id = ?", cookie.Value).First(&user).Error; err != nil {
		return nil
	}
	return &user
}

type homeData struct {
	Season int
	Races  []models.Race
	User   *models.User
}

// HandleHome renders the current season's race list.
func HandleHome(db *gorm.DB, currentSeason int) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		renderSeason(db, currentSeason, w, req)
	}
}

// HandleSeason renders a past season's race list.
func HandleSeason(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		year, err := validation.ValidateSeason(chi.URLParam(req, "year"))
		if err != nil {
			renderError(w, "Invalid season. Please use a four-digit year.", http.StatusBadRequest)
			return
		}
		renderSeason(db, year, w, req)
	}
}

func renderSeason(db *gorm.DB, season int, w http.ResponseWriter, req *http.Request) {
	var races []models.Race
	result := db.Where("season = ?", season).Order("round ASC").Find(&races)
	if result.Error != nil {
		slog.Error("Failed to list races", slog.Any("error", result.Error))
		renderError(w, "We couldn't load the races for this season.", http.StatusInternalServerError)
		return
	}

	render(w, "home.html", homeData{
		Season: season,
		Races:  races,
		User:   userFromRequest(db, req),
	})
}

type seasonCount struct {
	Season int
	Count  int64
}

// HandleSeasons renders the season index.
func HandleSeasons(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var seasons []seasonCount
		result := db.Model(&models.Race{}).
			Select("season, count(*) as count").
			Group("season").
			Order("season DESC").
			Scan(&seasons)
		if result.Error != nil {
			slog.Error("Failed to list seasons", slog.Any("error", result.Error))
			renderError(w, "We couldn't load the season list.", http.StatusInternalServerError)
			return
		}

		render(w, "seasons.html", struct{ Seasons []seasonCount }{Seasons: seasons})
	}
}

type raceData struct {
	Race    models.Race
	Reviews []*reviews.ReviewNode
	User    *models.User
}

// HandleRace renders a race's detail page with its review forest.
func HandleRace(db *gorm.DB, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			renderError(w, "Invalid race.", http.StatusBadRequest)
			return
		}

		var race models.Race
		if err := db.First(&race, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				renderError(w, "We couldn't find that race.", http.StatusNotFound)
			} else {
				slog.Error("Failed to get race", slog.Any("error", err))
				renderError(w, "Something went wrong while loading the race.", http.StatusInternalServerError)
			}
			return
		}

		forest, err := loadReviewForest(db, logger, race.ID)
		if err != nil {
			slog.Error("Failed to load reviews", slog.Any("error", err))
			renderError(w, "Something went wrong while loading reviews.", http.StatusInternalServerError)
			return
		}

		render(w, "race.html", raceData{
			Race:    race,
			Reviews: forest,
			User:    userFromRequest(db, req),
		})
	}
}

// loadReviewForest queries a race's reviews newest-first and assembles the
// reply tree.
func loadReviewForest(db *gorm.DB, logger *slog.Logger, raceID uint) ([]*reviews.ReviewNode, error) {
	var flat []models.Review
	err := db.Preload("User").
		Where("race_id = ?", raceID).
		Order("created_at DESC").
		Find(&flat).Error
	if err != nil {
		return nil, err
	}

	return reviews.BuildTree(flat, logger), nil
}

// HandleLogin creates-or-fetches a profile by name and sets the user
// cookie.
func HandleLogin(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			renderError(w, "Invalid form.", http.StatusBadRequest)
			return
		}

		name := req.PostFormValue("name")
		if name == "" {
			renderError(w, "Please provide a name.", http.StatusBadRequest)
			return
		}

		var user models.User
		err := db.Where("name = ?", name).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{ID: uuid.NewString(), Name: name}
			err = db.Create(&user).Error
		}
		if err != nil {
			slog.Error("Failed to log in user", slog.Any("error", err))
			renderError(w, "Something went wrong while signing in.", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     userCookie,
			Value:    user.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		referer := req.Header.Get("Referer")
		if referer == "" {
			referer = "/"
		}
		http.Redirect(w, req, referer, http.StatusSeeOther)
	}
}

type adminData struct {
	Stats   types.StatsData
	Races   []models.Race
	Message string
	User    *models.User
}

// HandleAdmin renders the admin page with stats and the race editor.
func HandleAdmin(db *gorm.DB, tracker *quota.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user := userFromRequest(db, req)
		if user == nil || !user.Admin {
			renderError(w, "Admin access required.", http.StatusForbidden)
			return
		}

		stats := gatherStats(db, tracker)

		var races []models.Race
		if err := db.Order("season DESC, round ASC").Limit(100).Find(&races).Error; err != nil {
			slog.Error("Failed to list races for admin", slog.Any("error", err))
			renderError(w, "Something went wrong while loading races.", http.StatusInternalServerError)
			return
		}

		render(w, "admin.html", adminData{
			Stats:   stats,
			Races:   races,
			Message: req.URL.Query().Get("message"),
			User:    user,
		})
	}
}

// gatherStats assembles the admin stats block. Individual query failures
// leave zeros rather than failing the page.
func gatherStats(db *gorm.DB, tracker *quota.Tracker) types.StatsData {
	var stats types.StatsData
	db.Model(&models.Race{}).Count(&stats.TotalRaces)
	db.Model(&models.Review{}).Where("parent_id IS NULL").Count(&stats.TotalReviews)
	db.Model(&models.Review{}).Where("parent_id IS NOT NULL").Count(&stats.TotalReplies)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.ThumbnailCache{}).Count(&stats.CachedThumbnails)
	db.Model(&models.Review{}).Where("rating IS NOT NULL").
		Select("COALESCE(AVG(rating), 0)").Scan(&stats.AverageRating)

	var first, last models.Race
	if err := db.Order("date ASC").First(&first).Error; err == nil {
		stats.FirstRaceDate = first.Date
	}
	if err := db.Order("date DESC").First(&last).Error; err == nil {
		stats.LastRaceDate = last.Date
	}
	db.Model(&models.Race{}).
		Select("season, COUNT(*) AS count").
		Group("season").Order("season DESC").
		Scan(&stats.SeasonDistribution)

	if tracker != nil {
		stats.QuotaStatus = string(tracker.Status())
		stats.QuotaPercentUsed = tracker.PercentUsed()
		stats.QuotaRemaining = tracker.Remaining()
	}

	return stats
}

// HandleAdminRaceSave creates or updates a race from the admin form.
func HandleAdminRaceSave(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user := userFromRequest(db, req)
		if user == nil || !user.Admin {
			renderError(w, "Admin access required.", http.StatusForbidden)
			return
		}

		if err := req.ParseForm(); err != nil {
			renderError(w, "Invalid form.", http.StatusBadRequest)
			return
		}

		date, err := time.Parse("2006-01-02", req.PostFormValue("date"))
		if err != nil {
			renderError(w, "Invalid date format. Please use YYYY-MM-DD.", http.StatusBadRequest)
			return
		}
		season, err := validation.ValidateSeason(req.PostFormValue("season"))
		if err != nil {
			renderError(w, "Invalid season.", http.StatusBadRequest)
			return
		}
		round, err := strconv.Atoi(req.PostFormValue("round"))
		if err != nil || round < 1 {
			renderError(w, "Invalid round.", http.StatusBadRequest)
			return
		}

		// Edits load the stored row first so columns the form does not
		// carry (video id, thumbnail, creation time) survive the save.
		var race models.Race
		if idStr := req.PostFormValue("id"); idStr != "" {
			id, err := strconv.Atoi(idStr)
			if err != nil {
				renderError(w, "Invalid race id.", http.StatusBadRequest)
				return
			}
			if err := db.First(&race, id).Error; err != nil {
				renderError(w, "Race not found.", http.StatusNotFound)
				return
			}
		}

		race.Name = req.PostFormValue("name")
		race.Circuit = req.PostFormValue("circuit")
		race.Date = date
		race.Season = season
		race.Round = round
		race.Winner = req.PostFormValue("winner")
		race.PodiumP1 = req.PostFormValue("podium_p1")
		race.PodiumP2 = req.PostFormValue("podium_p2")
		race.PodiumP3 = req.PostFormValue("podium_p3")
		race.Notes = req.PostFormValue("notes")

		if err := db.Save(&race).Error; err != nil {
			slog.Error("Failed to save race", slog.Any("error", err))
			renderError(w, "Something went wrong while saving the race.", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, req, "/admin?message=Race+saved", http.StatusSeeOther)
	}
}

// HandleAdminRaceDelete hard-deletes a race and its reviews.
func HandleAdminRaceDelete(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		user := userFromRequest(db, req)
		if user == nil || !user.Admin {
			renderError(w, "Admin access required.", http.StatusForbidden)
			return
		}

		id, err := strconv.Atoi(chi.URLParam(req, "id"))
		if err != nil {
			renderError(w, "Invalid race.", http.StatusBadRequest)
			return
		}

		if err := db.Where("race_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			slog.Error("Failed to delete race reviews", slog.Any("error", err))
			renderError(w, "Something went wrong while deleting the race.", http.StatusInternalServerError)
			return
		}
		if err := db.Unscoped().Delete(&models.Race{}, id).Error; err != nil {
			slog.Error("Failed to delete race", slog.Any("error", err))
			renderError(w, "Something went wrong while deleting the race.", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, req, "/admin?message=Race+deleted", http.StatusSeeOther)
	}
}

// HandleCron triggers an import run in the background, mirroring the
// fixed-period scan for external schedulers.
func HandleCron(imp *importer.Importer) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		go func() {
			ctx := context.Background()
			if err := imp.Run(ctx); err != nil {
				slog.Error("Failed to run import", slog.Any("error", err))
			}
		}()

		fmt.Fprintln(w, "Started race import")
	}
}
