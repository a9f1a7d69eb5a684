package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the server. Values come from
// BOXBOX_* environment variables with the defaults below.
type Config struct {
	Port   string
	DBPath string

	ErgastBaseURL string

	YouTubeAPIKey    string
	YouTubeBaseURL   string
	OfficialChannel  string
	QuotaCeiling     int
	QuotaStatePath   string
	ProbeCacheTTL    time.Duration
	FallbackImageURL string

	ImportInterval time.Duration
	CurrentSeason  int

	OpenAIAPIKey string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("boxbox")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", "8080")
	v.SetDefault("db_path", "boxbox.db")
	v.SetDefault("ergast_base_url", "https://api.jolpi.ca/ergast/f1")
	v.SetDefault("youtube_base_url", "https://www.googleapis.com/youtube/v3")
	v.SetDefault("official_channel", "")
	v.SetDefault("quota_ceiling", 100)
	v.SetDefault("quota_state_path", "quota_state.json")
	v.SetDefault("probe_cache_ttl", "15m")
	v.SetDefault("fallback_image_url", "/static/fallback.svg")
	v.SetDefault("import_interval", "24h")
	v.SetDefault("current_season", time.Now().Year())

	cfg := &Config{
		Port:             v.GetString("port"),
		DBPath:           v.GetString("db_path"),
		ErgastBaseURL:    v.GetString("ergast_base_url"),
		YouTubeAPIKey:    v.GetString("youtube_api_key"),
		YouTubeBaseURL:   v.GetString("youtube_base_url"),
		OfficialChannel:  v.GetString("official_channel"),
		QuotaCeiling:     v.GetInt("quota_ceiling"),
		QuotaStatePath:   v.GetString("quota_state_path"),
		ProbeCacheTTL:    v.GetDuration("probe_cache_ttl"),
		FallbackImageURL: v.GetString("fallback_image_url"),
		ImportInterval:   v.GetDuration("import_interval"),
		CurrentSeason:    v.GetInt("current_season"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
	}

	return cfg, nil
}
