package types

import "time"

// SeasonCount is one row of the per-season race distribution.
type SeasonCount struct {
	Season int
	Count  int64
}

// StatsData summarizes the database for the admin page.
type StatsData struct {
	TotalRaces         int64
	TotalReviews       int64
	TotalReplies       int64
	TotalUsers         int64
	CachedThumbnails   int64
	FirstRaceDate      time.Time
	LastRaceDate       time.Time
	AverageRating      float64
	QuotaStatus        string
	QuotaPercentUsed   float64
	QuotaRemaining     int
	SeasonDistribution []SeasonCount
}
