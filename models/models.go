package models

import (
	"time"

	"gorm.io/gorm"
)

// Race is a single Grand Prix, imported from the results API or entered by
// an admin. Thumbnail fields are populated lazily by the resolver.
type Race struct {
	gorm.Model
	Name     string    `gorm:"index" json:"name"`
	Circuit  string    `json:"circuit"`
	Date     time.Time `gorm:"index" json:"date"`
	Season   int       `gorm:"index:idx_races_season_round,unique" json:"season"`
	Round    int       `gorm:"index:idx_races_season_round,unique" json:"round"`
	Winner   string    `json:"winner"`
	PodiumP1 string    `json:"podium_p1"`
	PodiumP2 string    `json:"podium_p2"`
	PodiumP3 string    `json:"podium_p3"`
	Notes    string    `json:"notes"`

	TrackImageURL string `json:"track_image_url,omitempty"`
	VideoID       string `json:"video_id,omitempty"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	VideoURL      string `json:"video_url,omitempty"`
}

// Review is a rating with a body, or a reply to another review. Replies
// carry a ParentID and no rating; top-level reviews carry a rating and no
// ParentID. ParentID is assigned at creation and never re-pointed, so the
// parent chain cannot form a cycle.
type Review struct {
	gorm.Model
	RaceID   uint   `gorm:"index;not null" json:"race_id"`
	UserID   string `gorm:"index;not null" json:"user_id"`
	Rating   *int   `gorm:"check:rating IS NULL OR (rating >= 1 AND rating <= 5)" json:"rating,omitempty"`
	Body     string `gorm:"not null" json:"body"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`
	Edited   bool   `json:"edited"`
	Depth    int    `json:"depth"`

	User User `gorm:"foreignKey:UserID" json:"user"`
}

// ThumbnailCache stores the outcome of a successful highlight lookup, keyed
// by race name and year. Rows are deleted when validation finds the stored
// URL no longer resolves. Concurrent writers for the same key race with
// last-write-wins semantics on the upsert.
type ThumbnailCache struct {
	ID           uint   `gorm:"primaryKey"`
	RaceName     string `gorm:"index:idx_thumbnail_cache_key,unique;not null"`
	Year         int    `gorm:"index:idx_thumbnail_cache_key,unique;not null"`
	VideoID      string
	ThumbnailURL string
	ChannelTitle string
	VideoTitle   string
	CachedAt     time.Time
}

// User mirrors the auth provider's profile record. The ID is the provider's
// UUID, not an autoincrement.
type User struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"uniqueIndex;not null"`
	Admin     bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsReply reports whether the review is a reply rather than a top-level
// review.
func (r Review) IsReply() bool {
	return r.ParentID != nil
}
