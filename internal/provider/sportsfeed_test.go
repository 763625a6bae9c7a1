package provider

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsline/platform/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestFetchFinished_MapsFixtures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "soccer", r.URL.Query().Get("sport"))
		assert.NotEmpty(t, r.URL.Query().Get("apiKey"))
		w.Write([]byte(`{"fixtures":[
			{"id":"198772","sport":"soccer","status":"FT","home_team":"Arsenal","away_team":"Chelsea","score":{"home":2,"away":1}},
			{"id":"198773","sport":"soccer","status":"LIVE","home_team":"Leeds","away_team":"Fulham","score":{"home":1,"away":0}}
		]}`))
	}))
	defer srv.Close()

	c := NewSportsFeedClient(srv.URL, "test-key", testLogger())
	matches, err := c.FetchFinished(context.Background(), "soccer", time.Now())
	require.NoError(t, err)

	require.Len(t, matches, 1, "live fixtures are excluded")
	assert.Equal(t, "198772", matches[0].EventID)
	assert.Equal(t, domain.WinnerHome, matches[0].Winner)
	assert.Equal(t, 3, matches[0].TotalScore())
}

func TestFetchFinished_QuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSportsFeedClient(srv.URL, "test-key", testLogger())
	_, err := c.FetchFinished(context.Background(), "soccer", time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestFetchFinished_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	c := NewSportsFeedClient(srv.URL, "test-key", testLogger())
	_, err := c.FetchFinished(context.Background(), "soccer", time.Now())
	require.Error(t, err)
}
