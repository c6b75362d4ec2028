package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"hoopstats/ingestion/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Options)) (*Client, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	opts := Options{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		Timeout:         5 * time.Second,
		MaxAttempts:     3,
		BackoffBase:     time.Millisecond,
		BackoffMax:      10 * time.Millisecond,
		PageSize:        2,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
	for _, m := range mutate {
		m(&opts)
	}

	return NewClient(opts), &calls
}

func day(s string) time.Time {
	t, _ := time.Parse(models.DateLayout, s)
	return t
}

func TestFetchGames_FollowsCursor(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/games", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "2024-01-15", r.URL.Query().Get("dates[]"))
		assert.Equal(t, "2023", r.URL.Query().Get("seasons[]"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		switch r.URL.Query().Get("cursor") {
		case "":
			fmt.Fprint(w, `{"data":[{"id":1,"date":"2024-01-15","status":"Final"},{"id":2,"date":"2024-01-15","status":"Final"}],"meta":{"next_cursor":2,"per_page":2}}`)
		case "2":
			fmt.Fprint(w, `{"data":[{"id":3,"date":"2024-01-15","status":"Final"}],"meta":{"per_page":2}}`)
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})

	season := 2023
	var ids []int64
	err := c.FetchGames(context.Background(), models.DateRange{Start: day("2024-01-15"), End: day("2024-01-15")}, &season, func(g models.GameInput) error {
		ids = append(ids, g.ID)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestFetchGames_RangeUsesStartAndEnd(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-01-03", r.URL.Query().Get("end_date"))
		assert.Empty(t, r.URL.Query().Get("seasons[]"))
		fmt.Fprint(w, `{"data":[],"meta":{}}`)
	})

	err := c.FetchGames(context.Background(), models.DateRange{Start: day("2024-01-01"), End: day("2024-01-03")}, nil, func(models.GameInput) error {
		t.Fatal("no games expected")
		return nil
	})
	require.NoError(t, err)
}

func TestFetchGames_CallbackErrorStops(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[{"id":1,"date":"2024-01-15"}],"meta":{"next_cursor":9}}`)
	})

	stop := errors.New("stop")
	err := c.FetchGames(context.Background(), models.DateRange{Start: day("2024-01-15"), End: day("2024-01-15")}, nil, func(models.GameInput) error {
		return stop
	})

	assert.ErrorIs(t, err, stop)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetchStatsForGame(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stats", r.URL.Path)
		assert.Equal(t, "42", r.URL.Query().Get("game_ids[]"))
		fmt.Fprint(w, `{"data":[{"id":7,"min":"31:30","pts":22,"player":{"id":5,"first_name":"A","last_name":"B"},"team":{"id":1},"game":{"id":42,"home_team_id":1,"visitor_team_id":2}}],"meta":{}}`)
	})

	stats, err := c.FetchStatsForGame(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, int64(5), stats[0].Player.ID)
	require.NotNil(t, stats[0].Pts)
	assert.Equal(t, 22, *stats[0].Pts)
}

func TestGet_RateLimitExhaustsAttempts(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchTeams(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls), "exactly MaxAttempts requests")
}

func TestGet_ClientErrorNotRetried(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":"bad key"}`)
	})

	_, err := c.FetchTeams(context.Background())

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	assert.True(t, reqErr.IsAuth())
	assert.NotErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestGet_ServerErrorRecovers(t *testing.T) {
	var n int32
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":1,"abbreviation":"BOS","full_name":"Boston Celtics"}]}`)
	})

	teams, err := c.FetchTeams(context.Background())
	require.NoError(t, err)
	require.Len(t, teams, 1)
	assert.Equal(t, "BOS", teams[0].Abbreviation)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestGet_ServerErrorExhausted(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.FetchTeams(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(o *Options) {
		o.MaxAttempts = 1
		o.BreakerFailures = 2
	})

	for i := 0; i < 2; i++ {
		_, err := c.FetchTeams(context.Background())
		require.ErrorIs(t, err, ErrProviderUnavailable)
	}

	_, err := c.FetchTeams(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls), "open breaker fails fast")
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, func(o *Options) {
		o.BreakerFailures = 1
	})

	for i := 0; i < 3; i++ {
		_, err := c.FetchTeams(context.Background())
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestBackoff(t *testing.T) {
	c := NewClient(Options{BackoffBase: time.Second, BackoffMax: 5 * time.Second})

	assert.Equal(t, time.Second, c.backoff(1, 0))
	assert.Equal(t, 2*time.Second, c.backoff(2, 0))
	assert.Equal(t, 4*time.Second, c.backoff(3, 0))
	assert.Equal(t, 5*time.Second, c.backoff(4, 0), "capped")
	assert.Equal(t, 3*time.Second, c.backoff(1, 3*time.Second), "Retry-After wins")
	assert.Equal(t, 5*time.Second, c.backoff(1, time.Minute), "Retry-After capped")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Greater(t, parseRetryAfter(time.Now().Add(time.Hour).UTC().Format(http.TimeFormat)), 50*time.Minute)
}
