package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheSink(t *testing.T) {
	m := New()
	sink := m.ForCache("profile")

	sink.Hit()
	sink.Hit()
	sink.Miss()
	sink.StaleDiscard()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHitsTotal.WithLabelValues("profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheStaleDiscardsTotal.WithLabelValues("profile")))
}

func TestResourceSink(t *testing.T) {
	m := New()
	sink := m.ForResource("conversation")

	sink.Fetched(120*time.Millisecond, nil)
	sink.Fetched(80*time.Millisecond, errors.New("boom"))
	sink.Ticked()
	sink.Subscribers(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues("conversation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PollTicksTotal.WithLabelValues("conversation")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PollSubscribers.WithLabelValues("conversation")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FetchDuration))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ForCache("home-feed").Miss()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `circle_cache_misses_total{cache="home-feed"} 1`))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := New()
	b := New()
	a.ForCache("x").Hit()

	assert.Equal(t, 0.0, testutil.ToFloat64(b.CacheHitsTotal.WithLabelValues("x")))
}
