package ergast

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"log/slog"

	"github.com/boxboxhq/boxbox/lib/validation"
	"github.com/boxboxhq/boxbox/models"
)

// Client is a read-only client for an Ergast-compatible motorsport results
// API. Every call is a single attempt; callers treat failures as "no data".
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// RaceTableResult is the subset of the results payload we consume.
type RaceTableResult struct {
	MRData struct {
		RaceTable struct {
			Season string      `json:"season"`
			Races  []RaceEntry `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

// RaceEntry is one race in a season listing or results response.
type RaceEntry struct {
	Season   string   `json:"season"`
	Round    string   `json:"round"`
	RaceName string   `json:"raceName"`
	Date     string   `json:"date"`
	Time     string   `json:"time"`
	Circuit  Circuit  `json:"Circuit"`
	Results  []Result `json:"Results"`
}

// Circuit is the venue block of a race entry.
type Circuit struct {
	CircuitName string `json:"circuitName"`
}

// Result is one classified finisher.
type Result struct {
	Position string `json:"position"`
	Driver   Driver `json:"Driver"`
}

// Driver identifies a finisher by name.
type Driver struct {
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Season fetches the race schedule for a championship year.
func (c *Client) Season(ctx context.Context, year int) ([]RaceEntry, error) {
	url := fmt.Sprintf("%s/%d.json", c.baseURL, year)
	result, err := c.fetchRaceTable(ctx, url)
	if err != nil {
		return nil, err
	}
	return result.MRData.RaceTable.Races, nil
}

// Results fetches the classified results for a single round.
func (c *Client) Results(ctx context.Context, year, round int) (*RaceEntry, error) {
	url := fmt.Sprintf("%s/%d/%d/results.json", c.baseURL, year, round)
	result, err := c.fetchRaceTable(ctx, url)
	if err != nil {
		return nil, err
	}
	races := result.MRData.RaceTable.Races
	if len(races) == 0 {
		return nil, fmt.Errorf("no results for %d round %d", year, round)
	}
	return &races[0], nil
}

func (c *Client) fetchRaceTable(ctx context.Context, url string) (*RaceTableResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from results API", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := validation.ValidateRaceTableResponse(body); err != nil {
		c.logger.Warn("Rejected malformed results payload",
			slog.String("url", url),
			slog.Any("error", err))
		return nil, err
	}

	var result RaceTableResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// ToRace converts a schedule entry into a race record. Result fields are
// filled only when the entry carries classified results.
func (e RaceEntry) ToRace() (models.Race, error) {
	var season, round int
	if _, err := fmt.Sscanf(e.Season, "%d", &season); err != nil {
		return models.Race{}, fmt.Errorf("invalid season %q: %w", e.Season, err)
	}
	if _, err := fmt.Sscanf(e.Round, "%d", &round); err != nil {
		return models.Race{}, fmt.Errorf("invalid round %q: %w", e.Round, err)
	}

	date, err := time.Parse("2006-01-02", e.Date)
	if err != nil {
		return models.Race{}, fmt.Errorf("invalid date %q: %w", e.Date, err)
	}

	race := models.Race{
		Name:    e.RaceName,
		Circuit: e.Circuit.CircuitName,
		Date:    date,
		Season:  season,
		Round:   round,
	}

	for _, result := range e.Results {
		driver := result.Driver.GivenName + " " + result.Driver.FamilyName
		switch result.Position {
		case "1":
			race.Winner = driver
			race.PodiumP1 = driver
		case "2":
			race.PodiumP2 = driver
		case "3":
			race.PodiumP3 = driver
		}
	}

	return race, nil
}
