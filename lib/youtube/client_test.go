package youtube

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"log/slog"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBaseURL = "https://video.test/api/v3"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient("test-key", testBaseURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

const searchSuccessBody = `{
	"items": [
		{
			"id": {"videoId": "abc123"},
			"snippet": {
				"title": "Race Highlights | 2024 Monaco Grand Prix",
				"channelId": "UCB_qr75-ydFVKSF9Dmo6izg",
				"channelTitle": "FORMULA 1",
				"publishedAt": "2024-05-26T18:00:00Z"
			}
		},
		{
			"id": {"videoId": "def456"},
			"snippet": {"title": "Paddock Pass"}
		}
	]
}`

func TestSearch_Success(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusOK, searchSuccessBody))

	videos, err := c.Search(context.Background(), SearchParams{Query: "Monaco Grand Prix 2024 highlights"})

	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, "abc123", videos[0].ID)
	assert.Equal(t, "Race Highlights | 2024 Monaco Grand Prix", videos[0].Title)
	assert.Equal(t, "FORMULA 1", videos[0].ChannelTitle)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestSearch_SendsFilters(t *testing.T) {
	c := newTestClient(t)

	var gotQuery map[string][]string
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/search",
		func(req *http.Request) (*http.Response, error) {
			gotQuery = req.URL.Query()
			return httpmock.NewStringResponse(http.StatusOK, `{"items": []}`), nil
		})

	after := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := c.Search(context.Background(), SearchParams{
		Query:           "Monaco 2024 highlights",
		ChannelID:       "UCB_qr75-ydFVKSF9Dmo6izg",
		PublishedAfter:  after,
		PublishedBefore: before,
		MaxResults:      5,
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Monaco 2024 highlights"}, gotQuery["q"])
	assert.Equal(t, []string{"UCB_qr75-ydFVKSF9Dmo6izg"}, gotQuery["channelId"])
	assert.Equal(t, []string{"2024-01-01T00:00:00Z"}, gotQuery["publishedAfter"])
	assert.Equal(t, []string{"2025-01-01T00:00:00Z"}, gotQuery["publishedBefore"])
	assert.Equal(t, []string{"5"}, gotQuery["maxResults"])
}

func TestSearch_QuotaExceeded(t *testing.T) {
	c := newTestClient(t)

	body := `{"error": {"code": 403, "errors": [{"reason": "quotaExceeded"}]}}`
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusForbidden, body))

	_, err := c.Search(context.Background(), SearchParams{Query: "anything"})

	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestSearch_ForbiddenWithoutQuotaReason(t *testing.T) {
	c := newTestClient(t)

	body := `{"error": {"code": 403, "errors": [{"reason": "forbidden"}]}}`
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusForbidden, body))

	_, err := c.Search(context.Background(), SearchParams{Query: "anything"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestSearch_MalformedPayloadRejected(t *testing.T) {
	c := newTestClient(t)

	// Missing the required items array.
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusOK, `{"kind": "youtube#searchListResponse"}`))

	_, err := c.Search(context.Background(), SearchParams{Query: "anything"})

	assert.Error(t, err)
}

func TestSearch_SingleAttempt(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/search",
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, err := c.Search(context.Background(), SearchParams{Query: "anything"})

	require.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "failures must not be retried")
}

func TestThumbnailURL(t *testing.T) {
	c := newTestClient(t)

	assert.Equal(t, "https://i.ytimg.com/vi/abc123/maxresdefault.jpg", c.ThumbnailURL("abc123", "maxresdefault"))
	assert.Equal(t, "https://i.ytimg.com/vi/abc123/default.jpg", c.ThumbnailURL("abc123", "default"))
}

func TestExists(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodHead, "https://i.ytimg.com/vi/abc123/maxresdefault.jpg",
		httpmock.NewStringResponder(http.StatusOK, ""))
	httpmock.RegisterResponder(http.MethodHead, "https://i.ytimg.com/vi/abc123/hqdefault.jpg",
		httpmock.NewStringResponder(http.StatusNotFound, ""))

	assert.True(t, c.Exists(context.Background(), "https://i.ytimg.com/vi/abc123/maxresdefault.jpg"))
	assert.False(t, c.Exists(context.Background(), "https://i.ytimg.com/vi/abc123/hqdefault.jpg"))
	assert.False(t, c.Exists(context.Background(), "https://unmocked.test/image.jpg"))
}

func TestIsQuotaExceeded_TextBody(t *testing.T) {
	assert.True(t, isQuotaExceeded(http.StatusTooManyRequests, []byte("Daily quota exceeded")))
	assert.False(t, isQuotaExceeded(http.StatusForbidden, []byte("access denied")))
	assert.False(t, isQuotaExceeded(http.StatusOK, []byte("quota")))
}
