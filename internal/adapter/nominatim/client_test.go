package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail         = "ops@example.org"
	testUserAgent     = "member-locator-test/1.0"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const munichResponse = `[
  {
    "place_id": 101,
    "type": "city",
    "class": "boundary",
    "lat": "48.1371079",
    "lon": "11.5753822",
    "display_name": "München, Bayern, Deutschland",
    "boundingbox": ["48.0616244", "48.2481162", "11.3607770", "11.7229099"],
    "address": {"city": "München", "country_code": "de"}
  }
]`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(baseURL string, clock clockwork.Clock, cooldown time.Duration) (*Client, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	c := NewClient(Options{
		BaseURL:   baseURL,
		Email:     testEmail,
		UserAgent: testUserAgent,
		Timeout:   5 * time.Second,
		Cooldown:  cooldown,
	}, clock, m, discardLogger())
	return c, m
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "80331 münchen", q.Get("q"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		assert.Equal(t, testEmail, q.Get("email"))
		assert.Equal(t, "de", q.Get("countrycodes"))
		assert.False(t, q.Has("exclude_place_ids"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, munichResponse)
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, clockwork.NewFakeClock(), 0)
	got, err := c.Search(context.Background(), domain.SearchRequest{Query: "80331 münchen", Scope: "de"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Candidate{
		PlaceID:     101,
		Type:        "city",
		Class:       "boundary",
		Lat:         "48.1371079",
		Lon:         "11.5753822",
		DisplayName: "München, Bayern, Deutschland",
		BoundingBox: []string{"48.0616244", "48.2481162", "11.3607770", "11.7229099"},
		Address:     map[string]string{"city": "München", "country_code": "de"},
	}, got[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("success")))
}

func TestClient_URL(t *testing.T) {
	c, _ := testClient("https://nominatim.example.org/", clockwork.NewFakeClock(), 0)

	u := c.URL(domain.SearchRequest{Query: ", wien, ", Scope: "at,ch", ExcludePlaceIDs: []int64{7, 9}})

	assert.Equal(t,
		"https://nominatim.example.org/search?addressdetails=1&countrycodes=at%2Cch&email=ops%40example.org&exclude_place_ids=7%2C9&format=json&q=wien",
		u)
}

func TestClient_Search_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("countrycodes"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, clockwork.NewFakeClock(), 0)
	got, err := c.Search(context.Background(), domain.SearchRequest{Query: "atlantis"})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("empty")))
}

func TestClient_Search_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, "slow down")
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, clockwork.NewFakeClock(), 0)
	_, err := c.Search(context.Background(), domain.SearchRequest{Query: "münchen"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("error")))
}

func TestClient_Search_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":`)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL, clockwork.NewFakeClock(), 0)
	_, err := c.Search(context.Background(), domain.SearchRequest{Query: "münchen"})

	assert.Error(t, err)
}

func TestClient_Search_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, m := testClient(srv.URL, clockwork.NewFakeClock(), 0)
	for range 5 {
		_, err := c.Search(context.Background(), domain.SearchRequest{Query: "münchen"})
		require.Error(t, err)
	}

	_, err := c.Search(context.Background(), domain.SearchRequest{Query: "münchen"})

	require.Error(t, err)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeRequests.WithLabelValues("rejected")))
}

func TestClient_Search_Cooldown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	c, _ := testClient(srv.URL, clock, time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Search(context.Background(), domain.SearchRequest{Query: "münchen"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	select {
	case <-done:
		t.Fatal("search returned before the cooldown elapsed")
	default:
	}

	clock.Advance(time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("search did not return after the cooldown")
	}
}

func TestClient_Search_CooldownAfterFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	clock := clockwork.NewFakeClock()
	c, _ := testClient(srv.URL, clock, time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := c.Search(context.Background(), domain.SearchRequest{Query: "münchen"})
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Second)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("search did not return after the cooldown")
	}
}
