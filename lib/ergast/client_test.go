package ergast

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

const testBaseURL = "https://results.test/f1"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(testBaseURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	httpmock.ActivateNonDefault(c.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

const seasonBody = `{
	"MRData": {
		"RaceTable": {
			"season": "2024",
			"Races": [
				{
					"season": "2024",
					"round": "8",
					"raceName": "Monaco Grand Prix",
					"date": "2024-05-26",
					"time": "13:00:00Z",
					"Circuit": {"circuitName": "Circuit de Monaco"}
				},
				{
					"season": "2024",
					"round": "9",
					"raceName": "Canadian Grand Prix",
					"date": "2024-06-09",
					"Circuit": {"circuitName": "Circuit Gilles Villeneuve"}
				}
			]
		}
	}
}`

const resultsBody = `{
	"MRData": {
		"RaceTable": {
			"season": "2024",
			"Races": [
				{
					"season": "2024",
					"round": "8",
					"raceName": "Monaco Grand Prix",
					"date": "2024-05-26",
					"Circuit": {"circuitName": "Circuit de Monaco"},
					"Results": [
						{"position": "1", "Driver": {"givenName": "Charles", "familyName": "Leclerc"}},
						{"position": "2", "Driver": {"givenName": "Oscar", "familyName": "Piastri"}},
						{"position": "3", "Driver": {"givenName": "Carlos", "familyName": "Sainz"}},
						{"position": "4", "Driver": {"givenName": "Lando", "familyName": "Norris"}}
					]
				}
			]
		}
	}
}`

func TestSeason_Success(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/2024.json",
		httpmock.NewStringResponder(http.StatusOK, seasonBody))

	races, err := c.Season(context.Background(), 2024)

	require.NoError(t, err)
	require.Len(t, races, 2)
	assert.Equal(t, "Monaco Grand Prix", races[0].RaceName)
	assert.Equal(t, "Circuit de Monaco", races[0].Circuit.CircuitName)
	assert.Equal(t, "9", races[1].Round)
}

func TestResults_PodiumMapping(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/2024/8/results.json",
		httpmock.NewStringResponder(http.StatusOK, resultsBody))

	entry, err := c.Results(context.Background(), 2024, 8)
	require.NoError(t, err)

	race, err := entry.ToRace()
	require.NoError(t, err)

	assert.Equal(t, "Monaco Grand Prix", race.Name)
	assert.Equal(t, 2024, race.Season)
	assert.Equal(t, 8, race.Round)
	assert.Equal(t, time.Date(2024, 5, 26, 0, 0, 0, 0, time.UTC), race.Date)
	assert.Equal(t, "Charles Leclerc", race.Winner)
	assert.Equal(t, "Charles Leclerc", race.PodiumP1)
	assert.Equal(t, "Oscar Piastri", race.PodiumP2)
	assert.Equal(t, "Carlos Sainz", race.PodiumP3)
}

func TestResults_EmptyRaceTable(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/2024/99/results.json",
		httpmock.NewStringResponder(http.StatusOK, `{"MRData": {"RaceTable": {"Races": []}}}`))

	_, err := c.Results(context.Background(), 2024, 99)

	assert.Error(t, err)
}

func TestSeason_MalformedPayloadRejected(t *testing.T) {
	c := newTestClient(t)

	// A race without its required Circuit.
	body := `{"MRData": {"RaceTable": {"Races": [{"season": "2024", "round": "8", "raceName": "Monaco Grand Prix", "date": "2024-05-26"}]}}}`
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/2024.json",
		httpmock.NewStringResponder(http.StatusOK, body))

	_, err := c.Season(context.Background(), 2024)

	assert.Error(t, err)
}

func TestSeason_NonOKStatus(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/2024.json",
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	_, err := c.Season(context.Background(), 2024)

	require.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount(), "failures must not be retried")
}

func TestToRace_InvalidDate(t *testing.T) {
	entry := RaceEntry{Season: "2024", Round: "8", RaceName: "Monaco Grand Prix", Date: "26-05-2024"}

	_, err := entry.ToRace()

	assert.Error(t, err)
}
