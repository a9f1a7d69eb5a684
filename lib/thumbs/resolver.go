package thumbs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/boxboxhq/boxbox/lib/quota"
	"github.com/boxboxhq/boxbox/lib/youtube"
	"github.com/boxboxhq/boxbox/models"
)

// VideoAPI is the slice of the video-platform client the resolver needs.
type VideoAPI interface {
	Search(ctx context.Context, params youtube.SearchParams) ([]youtube.Video, error)
	ThumbnailURL(videoID, quality string) string
	WatchURL(videoID string) string
	Exists(ctx context.Context, url string) bool
}

// Source identifies which tier of the fallback chain produced a thumbnail.
type Source string

const (
	SourceOfficial    Source = "official"
	SourceCache       Source = "cache"
	SourceSearch      Source = "search"
	SourceFallback    Source = "fallback"
	SourcePlaceholder Source = "placeholder"
)

// Resolution is the outcome of resolving a race's thumbnail. Official is
// true only when the URL is this race's own verified highlight thumbnail;
// borrowed same-year entries and static images report false.
type Resolution struct {
	URL      string `json:"url"`
	Official bool   `json:"official"`
	Source   Source `json:"source"`
}

// Config tunes the resolver.
type Config struct {
	// OfficialChannel restricts searches to a known channel ID when set.
	OfficialChannel string
	// FallbackImageURL is the generic static image used when no circuit
	// specific fallback exists.
	FallbackImageURL string
	// PlaceholderImageURL is shown for races that have not happened yet.
	PlaceholderImageURL string
	// ProbeTTL bounds how long a URL existence check is memoized.
	ProbeTTL time.Duration
}

// Resolver produces a displayable image URL for a race, preferring real
// event-highlight thumbnails over static fallbacks. Every network step is
// attempted exactly once; failures degrade to the next tier.
type Resolver struct {
	db      *gorm.DB
	video   VideoAPI
	tracker *quota.Tracker
	probes  *gocache.Cache
	group   singleflight.Group
	logger  *slog.Logger
	cfg     Config
	now     func() time.Time
}

// NewResolver wires a resolver. The probe cache keeps HEAD results so many
// cards probing the same URL within the TTL don't re-issue the request.
func NewResolver(db *gorm.DB, video VideoAPI, tracker *quota.Tracker, cfg Config, logger *slog.Logger) *Resolver {
	ttl := cfg.ProbeTTL
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if cfg.PlaceholderImageURL == "" {
		cfg.PlaceholderImageURL = "/static/upcoming.svg"
	}
	if cfg.FallbackImageURL == "" {
		cfg.FallbackImageURL = "/static/fallback.svg"
	}
	return &Resolver{
		db:      db,
		video:   video,
		tracker: tracker,
		probes:  gocache.New(ttl, 2*ttl),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Resolve runs the fallback chain for a race. Concurrent calls for the
// same (race name, year) are collapsed; the DB upsert stays
// last-write-wins across processes.
func (r *Resolver) Resolve(ctx context.Context, race *models.Race) Resolution {
	// Future race: nothing to fetch yet.
	if race.Date.After(r.now()) {
		return Resolution{URL: r.cfg.PlaceholderImageURL, Source: SourcePlaceholder}
	}

	key := fmt.Sprintf("%s|%d", race.Name, race.Season)
	res, _, _ := r.group.Do(key, func() (interface{}, error) {
		return r.resolve(ctx, race), nil
	})
	return res.(Resolution)
}

func (r *Resolver) resolve(ctx context.Context, race *models.Race) Resolution {
	// Stored thumbnail on the race record.
	if race.ThumbnailURL != "" && r.exists(ctx, race.ThumbnailURL) {
		return Resolution{URL: race.ThumbnailURL, Official: true, Source: SourceOfficial}
	}

	// Local cache keyed by (race name, year).
	var entry models.ThumbnailCache
	err := r.db.WithContext(ctx).
		Where("race_name = ? AND year = ?", race.Name, race.Season).
		First(&entry).Error
	switch {
	case err == nil:
		if r.exists(ctx, entry.ThumbnailURL) {
			return Resolution{URL: entry.ThumbnailURL, Official: true, Source: SourceCache}
		}
		// Stale entry; drop it and fall through to a fresh search.
		r.probes.Delete(entry.ThumbnailURL)
		if err := r.db.WithContext(ctx).Delete(&models.ThumbnailCache{}, entry.ID).Error; err != nil {
			r.logger.Warn("Failed to delete stale cache entry",
				slog.String("race", race.Name),
				slog.Any("error", err))
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Cache miss.
	default:
		r.logger.Warn("Thumbnail cache lookup failed",
			slog.String("race", race.Name),
			slog.Any("error", err))
	}

	if r.tracker.ShouldSkip() {
		r.logger.Debug("Skipping search, quota exhausted", slog.String("race", race.Name))
		return r.exhaustedFallback(ctx, race)
	}

	video, err := r.search(ctx, race)
	if err != nil {
		if errors.Is(err, youtube.ErrQuotaExceeded) {
			r.tracker.Exhaust()
			return r.exhaustedFallback(ctx, race)
		}
		r.logger.Debug("Highlight search failed",
			slog.String("race", race.Name),
			slog.Any("error", err))
		return r.staticFallback(race)
	}
	if video == nil {
		return r.staticFallback(race)
	}

	thumbURL := r.probeQualities(ctx, video.ID)

	r.persist(ctx, race, video, thumbURL)

	return Resolution{URL: thumbURL, Official: true, Source: SourceSearch}
}

// search queries the video platform for the race's highlight video and
// picks the best title match. A nil video with nil error means no
// acceptable match.
func (r *Resolver) search(ctx context.Context, race *models.Race) (*youtube.Video, error) {
	yearStart := time.Date(race.Season, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	r.tracker.Record()
	videos, err := r.video.Search(ctx, youtube.SearchParams{
		Query:           fmt.Sprintf("%s %d highlights", race.Name, race.Season),
		ChannelID:       r.cfg.OfficialChannel,
		PublishedAfter:  yearStart,
		PublishedBefore: yearEnd,
	})
	if err != nil {
		return nil, err
	}

	return selectVideo(videos, race.Name, race.Season), nil
}

// selectVideo picks the first exact-title match, then the first loose
// match containing the race name and a highlights keyword.
func selectVideo(videos []youtube.Video, raceName string, year int) *youtube.Video {
	expected := expectedTitle(raceName, year)
	for i := range videos {
		if videos[i].Title == expected {
			return &videos[i]
		}
	}

	base := normalize(strings.TrimSuffix(raceName, " Grand Prix"))
	for i := range videos {
		title := normalize(videos[i].Title)
		if strings.Contains(title, base) && strings.Contains(title, "highlight") {
			return &videos[i]
		}
	}

	return nil
}

// expectedTitle builds the official channel's naming convention for
// highlight uploads.
func expectedTitle(raceName string, year int) string {
	name := raceName
	if !strings.HasSuffix(name, "Grand Prix") {
		name += " Grand Prix"
	}
	return fmt.Sprintf("Race Highlights | %d %s", year, name)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// probeQualities checks thumbnail URLs in descending quality and returns
// the first that resolves. When none do, the default quality URL is
// returned without validation.
func (r *Resolver) probeQualities(ctx context.Context, videoID string) string {
	for _, quality := range youtube.ThumbnailQualities {
		url := r.video.ThumbnailURL(videoID, quality)
		if r.exists(ctx, url) {
			return url
		}
	}
	return r.video.ThumbnailURL(videoID, "default")
}

// persist writes the resolved video into the cache and opportunistically
// onto the race record. Both writes are best-effort.
func (r *Resolver) persist(ctx context.Context, race *models.Race, video *youtube.Video, thumbURL string) {
	entry := models.ThumbnailCache{
		RaceName:     race.Name,
		Year:         race.Season,
		VideoID:      video.ID,
		ThumbnailURL: thumbURL,
		ChannelTitle: video.ChannelTitle,
		VideoTitle:   video.Title,
		CachedAt:     r.now(),
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "race_name"}, {Name: "year"}},
		UpdateAll: true,
	}).Create(&entry).Error
	if err != nil {
		r.logger.Warn("Failed to write thumbnail cache",
			slog.String("race", race.Name),
			slog.Any("error", err))
	}

	updates := map[string]interface{}{
		"video_id":      video.ID,
		"thumbnail_url": thumbURL,
		"video_url":     r.video.WatchURL(video.ID),
	}
	if err := r.db.WithContext(ctx).Model(race).Updates(updates).Error; err != nil {
		r.logger.Warn("Failed to update race thumbnail fields",
			slog.String("race", race.Name),
			slog.Any("error", err))
	}
}

// exhaustedFallback reuses any cached entry for the same year before
// giving up and rendering a static image.
func (r *Resolver) exhaustedFallback(ctx context.Context, race *models.Race) Resolution {
	var entry models.ThumbnailCache
	err := r.db.WithContext(ctx).
		Where("year = ?", race.Season).
		Order("cached_at DESC").
		First(&entry).Error
	if err == nil && entry.ThumbnailURL != "" {
		return Resolution{URL: entry.ThumbnailURL, Source: SourceCache}
	}

	return r.staticFallback(race)
}

// staticFallback returns the circuit-specific static image when one is
// known, else the generic fallback.
func (r *Resolver) staticFallback(race *models.Race) Resolution {
	if url, ok := circuitFallback(race.Circuit); ok {
		return Resolution{URL: url, Source: SourceFallback}
	}
	return Resolution{URL: r.cfg.FallbackImageURL, Source: SourceFallback}
}

// exists memoizes HEAD probes through the in-process TTL cache.
func (r *Resolver) exists(ctx context.Context, url string) bool {
	if cached, found := r.probes.Get(url); found {
		return cached.(bool)
	}

	ok := r.video.Exists(ctx, url)
	r.probes.SetDefault(url, ok)
	return ok
}
