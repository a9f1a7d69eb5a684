package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boxboxhq/boxbox/models"
)

func newAdminRouter(db *gorm.DB) *chi.Mux {
	router := chi.NewRouter()
	router.Post("/admin/race", HandleAdminRaceSave(db))
	router.Post("/admin/race/{id}/delete", HandleAdminRaceDelete(db))
	return router
}

func postRaceForm(t *testing.T, router *chi.Mux, user *models.User, form url.Values) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/admin/race", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if user != nil {
		req.AddCookie(&http.Cookie{Name: userCookie, Value: user.ID})
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func raceForm(race *models.Race) url.Values {
	form := url.Values{}
	form.Set("name", race.Name)
	form.Set("circuit", race.Circuit)
	form.Set("date", race.Date.Format("2006-01-02"))
	form.Set("season", fmt.Sprintf("%d", race.Season))
	form.Set("round", fmt.Sprintf("%d", race.Round))
	form.Set("winner", race.Winner)
	form.Set("notes", race.Notes)
	return form
}

func TestAdminRaceSave_RequiresAdmin(t *testing.T) {
	db, _ := newTestApp(t)
	router := newAdminRouter(db)
	user := createUser(t, db, "alice", false)

	rec := postRaceForm(t, router, user, raceForm(&models.Race{
		Name: "Monaco Grand Prix", Circuit: "Circuit de Monaco",
		Date: time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC), Season: 2024, Round: 8,
	}))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRaceSave_CreatesRace(t *testing.T) {
	db, _ := newTestApp(t)
	router := newAdminRouter(db)
	admin := createUser(t, db, "root", true)

	rec := postRaceForm(t, router, admin, raceForm(&models.Race{
		Name: "Dutch Grand Prix", Circuit: "Circuit Zandvoort",
		Date: time.Date(2024, 8, 25, 0, 0, 0, 0, time.UTC), Season: 2024, Round: 15,
		Winner: "Lando Norris",
	}))

	require.Equal(t, http.StatusSeeOther, rec.Code)

	var saved models.Race
	require.NoError(t, db.Where("name = ?", "Dutch Grand Prix").First(&saved).Error)
	assert.Equal(t, "Lando Norris", saved.Winner)
	assert.Equal(t, 15, saved.Round)
	assert.False(t, saved.CreatedAt.IsZero())
}

func TestAdminRaceSave_EditKeepsResolvedFields(t *testing.T) {
	db, _ := newTestApp(t)
	router := newAdminRouter(db)
	admin := createUser(t, db, "root", true)

	race := createRace(t, db)
	race.VideoID = "abc123"
	race.ThumbnailURL = "https://i.ytimg.com/vi/abc123/maxresdefault.jpg"
	race.VideoURL = "https://www.youtube.com/watch?v=abc123"
	require.NoError(t, db.Save(race).Error)

	form := raceForm(race)
	form.Set("id", fmt.Sprintf("%d", race.ID))
	form.Set("winner", "Charles Leclerc")
	form.Set("notes", "Home win at last.")

	rec := postRaceForm(t, router, admin, form)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	var saved models.Race
	require.NoError(t, db.First(&saved, race.ID).Error)
	assert.Equal(t, "Charles Leclerc", saved.Winner)
	assert.Equal(t, "Home win at last.", saved.Notes)
	assert.Equal(t, "abc123", saved.VideoID, "edits must not wipe auto-populated video fields")
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/maxresdefault.jpg", saved.ThumbnailURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", saved.VideoURL)
	assert.True(t, saved.CreatedAt.Equal(race.CreatedAt), "edits must keep the original creation time")
}

func TestAdminRaceSave_UnknownIDRejected(t *testing.T) {
	db, _ := newTestApp(t)
	router := newAdminRouter(db)
	admin := createUser(t, db, "root", true)

	form := raceForm(&models.Race{
		Name: "Ghost Grand Prix", Circuit: "Nowhere",
		Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Season: 2024, Round: 9,
	})
	form.Set("id", "9999")

	rec := postRaceForm(t, router, admin, form)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var count int64
	db.Model(&models.Race{}).Count(&count)
	assert.Zero(t, count)
}

func TestGatherStats_SeasonDistributionAndDates(t *testing.T) {
	db, _ := newTestApp(t)

	for i, season := range []int{2023, 2024, 2024} {
		require.NoError(t, db.Create(&models.Race{
			Name:    fmt.Sprintf("Race %d", i+1),
			Circuit: "Somewhere",
			Date:    time.Date(season, time.Month(i+3), 10, 0, 0, 0, 0, time.UTC),
			Season:  season,
			Round:   i + 1,
		}).Error)
	}

	stats := gatherStats(db, nil)

	assert.Equal(t, int64(3), stats.TotalRaces)
	assert.Equal(t, 2023, stats.FirstRaceDate.Year())
	assert.Equal(t, 2024, stats.LastRaceDate.Year())
	require.Len(t, stats.SeasonDistribution, 2)
	assert.Equal(t, 2024, stats.SeasonDistribution[0].Season)
	assert.Equal(t, int64(2), stats.SeasonDistribution[0].Count)
	assert.Equal(t, 2023, stats.SeasonDistribution[1].Season)
	assert.Equal(t, int64(1), stats.SeasonDistribution[1].Count)
}
