package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oddsline/platform/internal/domain"
)

// ResultsProvider supplies finished-match records for a sport on a given day.
// Implementations may return an empty slice on upstream error; the engine
// treats a missing slice as degraded latency, never as a settlement error.
type ResultsProvider interface {
	FetchFinished(ctx context.Context, sport string, day time.Time) ([]domain.FinishedMatch, error)
}

// ── Feed types ──

type feedFixture struct {
	ID       string `json:"id"`
	Sport    string `json:"sport"`
	Status   string `json:"status"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
	Score    struct {
		Home int `json:"home"`
		Away int `json:"away"`
	} `json:"score"`
}

type feedResponse struct {
	Fixtures []feedFixture `json:"fixtures"`
}

// finished fixture statuses reported by the feed.
var finishedStatuses = map[string]bool{
	"FT":       true,
	"AET":      true,
	"PEN":      true,
	"finished": true,
}

// ── SportsFeedClient ──

// SportsFeedClient fetches finished fixtures from the sports results API.
// The feed is rate-limited on the free tier; 429s surface as errors so the
// caller's circuit breaker can back off the sport.
type SportsFeedClient struct {
	baseURL string
	apiKey  string
	logger  *slog.Logger
	client  *http.Client
}

// NewSportsFeedClient creates a results feed client.
func NewSportsFeedClient(baseURL, apiKey string, logger *slog.Logger) *SportsFeedClient {
	return &SportsFeedClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchFinished returns finished fixtures for the sport on the given day.
func (c *SportsFeedClient) FetchFinished(ctx context.Context, sport string, day time.Time) ([]domain.FinishedMatch, error) {
	path := fmt.Sprintf("/v1/fixtures?sport=%s&date=%s&status=finished", sport, day.Format("2006-01-02"))
	body, err := c.feedGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	matches := make([]domain.FinishedMatch, 0, len(resp.Fixtures))
	for _, f := range resp.Fixtures {
		if !finishedStatuses[f.Status] {
			continue
		}
		matches = append(matches, domain.FinishedMatch{
			EventID:   f.ID,
			Sport:     sport,
			HomeTeam:  f.HomeTeam,
			AwayTeam:  f.AwayTeam,
			HomeScore: f.Score.Home,
			AwayScore: f.Score.Away,
			Winner:    domain.DeriveWinner(f.Score.Home, f.Score.Away),
			Status:    "finished",
		})
	}
	return matches, nil
}

func (c *SportsFeedClient) feedGet(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	if strings.Contains(path, "?") {
		url += "&apiKey=" + c.apiKey
	} else {
		url += "?apiKey=" + c.apiKey
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	remaining := resp.Header.Get("x-requests-remaining")
	c.logger.Debug("sports feed request", "path", path, "status", resp.StatusCode, "remaining", remaining)

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("sports feed quota exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sports feed returned %d: %s", resp.StatusCode, string(body[:min(200, len(body))]))
	}

	return body, nil
}
