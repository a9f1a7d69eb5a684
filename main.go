package main

import (
	"context"
	"net/http"
	"os"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/boxboxhq/boxbox/handlers"
	"github.com/boxboxhq/boxbox/lib/config"
	"github.com/boxboxhq/boxbox/lib/db"
	"github.com/boxboxhq/boxbox/lib/ergast"
	"github.com/boxboxhq/boxbox/lib/health"
	"github.com/boxboxhq/boxbox/lib/importer"
	"github.com/boxboxhq/boxbox/lib/lock"
	"github.com/boxboxhq/boxbox/lib/notes"
	"github.com/boxboxhq/boxbox/lib/quota"
	"github.com/boxboxhq/boxbox/lib/thumbs"
	"github.com/boxboxhq/boxbox/lib/youtube"
)

// App bundles the wired components behind the router.
type App struct {
	db       *gorm.DB
	router   *chi.Mux
	importer *importer.Importer
	cfg      *config.Config
	logger   *slog.Logger
}

func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	gdb, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{
		Logger: db.NewGormLogger(logger),
	})
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(gdb, logger); err != nil {
		return nil, err
	}

	tracker, err := quota.NewTracker(cfg.QuotaStatePath, cfg.QuotaCeiling, logger)
	if err != nil {
		return nil, err
	}

	videoClient := youtube.NewClient(cfg.YouTubeAPIKey, cfg.YouTubeBaseURL, logger)
	resolver := thumbs.NewResolver(gdb, videoClient, tracker, thumbs.Config{
		OfficialChannel:  cfg.OfficialChannel,
		FallbackImageURL: cfg.FallbackImageURL,
		ProbeTTL:         cfg.ProbeCacheTTL,
	}, logger)

	resultsClient := ergast.NewClient(cfg.ErgastBaseURL, logger)
	recapGen := notes.New(cfg.OpenAIAPIKey, logger)
	fileLock := lock.NewFileLock("", logger)
	imp := importer.New(gdb, resultsClient, recapGen, fileLock, cfg.CurrentSeason, logger)

	app := &App{
		db:       gdb,
		router:   chi.NewRouter(),
		importer: imp,
		cfg:      cfg,
		logger:   logger,
	}
	app.setupRoutes(tracker, resolver)

	return app, nil
}

func (a *App) setupRoutes(tracker *quota.Tracker, resolver *thumbs.Resolver) {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)

	a.router.Get("/", handlers.HandleHome(a.db, a.cfg.CurrentSeason))
	a.router.Get("/seasons", handlers.HandleSeasons(a.db))
	a.router.Get("/season/{year}", handlers.HandleSeason(a.db))
	a.router.Get("/race/{id}", handlers.HandleRace(a.db, a.logger))
	a.router.Post("/login", handlers.HandleLogin(a.db))

	a.router.Get("/admin", handlers.HandleAdmin(a.db, tracker))
	a.router.Post("/admin/race", handlers.HandleAdminRaceSave(a.db))
	a.router.Post("/admin/race/{id}/delete", handlers.HandleAdminRaceDelete(a.db))

	a.router.Get("/api/races/{id}/thumbnail", handlers.HandleThumbnail(a.db, resolver))
	a.router.Get("/api/races/{id}/reviews", handlers.HandleListReviews(a.db, a.logger))
	a.router.Post("/api/races/{id}/reviews", handlers.HandleCreateReview(a.db, a.logger))
	a.router.Put("/api/reviews/{id}", handlers.HandleUpdateReview(a.db))
	a.router.Delete("/api/reviews/{id}", handlers.HandleDeleteReview(a.db))
	a.router.Get("/api/quota", handlers.HandleQuota(tracker))

	a.router.Post("/cron", handlers.HandleCron(a.importer))
	a.router.Get("/healthz", health.Check(a.db))

	a.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	app, err := NewApp(cfg, logger)
	if err != nil {
		logger.Error("Failed to start", slog.Any("error", err))
		os.Exit(1)
	}

	// Periodic re-scan for newly scheduled races.
	go app.importer.RunPeriodically(context.Background(), cfg.ImportInterval)

	logger.Info("Starting server", slog.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, app.router); err != nil {
		logger.Error("Server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
