package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/boxboxhq/boxbox/lib/validation"
)

// ErrQuotaExceeded is returned when the video platform reports its daily
// quota is exhausted. Callers degrade to cache-or-fallback on this error.
var ErrQuotaExceeded = errors.New("video API quota exceeded")

// Quality tiers for convention-based thumbnail URLs, best first.
var ThumbnailQualities = []string{"maxresdefault", "hqdefault", "mqdefault", "sddefault", "default"}

// Client talks to a YouTube-Data-style search API. Each call is a single
// attempt with no retry.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// SearchParams constrain a video search.
type SearchParams struct {
	Query           string
	ChannelID       string
	PublishedAfter  time.Time
	PublishedBefore time.Time
	MaxResults      int
}

// Video is one search result.
type Video struct {
	ID           string
	Title        string
	ChannelID    string
	ChannelTitle string
	PublishedAt  string
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelID    string `json:"channelId"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code   int `json:"code"`
		Errors []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func NewClient(apiKey, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Search runs a video search and returns the matching videos in API order.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Video, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("type", "video")
	q.Set("key", c.apiKey)
	q.Set("q", params.Query)
	if params.ChannelID != "" {
		q.Set("channelId", params.ChannelID)
	}
	if !params.PublishedAfter.IsZero() {
		q.Set("publishedAfter", params.PublishedAfter.UTC().Format(time.RFC3339))
	}
	if !params.PublishedBefore.IsZero() {
		q.Set("publishedBefore", params.PublishedBefore.UTC().Format(time.RFC3339))
	}
	maxResults := params.MaxResults
	if maxResults == 0 {
		maxResults = 10
	}
	q.Set("maxResults", strconv.Itoa(maxResults))

	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if isQuotaExceeded(resp.StatusCode, body) {
			c.logger.Warn("Video API quota exhausted")
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("unexpected status %d from video API", resp.StatusCode)
	}

	if err := validation.ValidateVideoSearchResponse(body); err != nil {
		c.logger.Warn("Rejected malformed search payload",
			slog.String("query", params.Query),
			slog.Any("error", err))
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	videos := make([]Video, 0, len(result.Items))
	for _, item := range result.Items {
		videos = append(videos, Video{
			ID:           item.ID.VideoID,
			Title:        item.Snippet.Title,
			ChannelID:    item.Snippet.ChannelID,
			ChannelTitle: item.Snippet.ChannelTitle,
			PublishedAt:  item.Snippet.PublishedAt,
		})
	}

	return videos, nil
}

// ThumbnailURL builds the convention-based image URL for a video at the
// given quality tier.
func (c *Client) ThumbnailURL(videoID, quality string) string {
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/%s.jpg", videoID, quality)
}

// WatchURL builds the public watch URL for a video.
func (c *Client) WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}

// Exists issues a lightweight HEAD request to check whether a URL still
// resolves. A non-2xx answer or a transport error both count as missing.
func (c *Client) Exists(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("failed to close response body", "error", err)
		}
	}()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// isQuotaExceeded inspects an error response for the platform's quota
// exhaustion signal.
func isQuotaExceeded(status int, body []byte) bool {
	if status != http.StatusForbidden && status != http.StatusTooManyRequests {
		return false
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		// Some deployments return a bare text body; fall back to a
		// substring check.
		return strings.Contains(strings.ToLower(string(body)), "quota")
	}

	for _, e := range errResp.Error.Errors {
		if e.Reason == "quotaExceeded" || e.Reason == "dailyLimitExceeded" {
			return true
		}
	}
	return false
}
