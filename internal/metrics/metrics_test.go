package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/api/v1/eclipse", "/api/v1/eclipse"},
		{"/api/v1/zones", "/api/v1/zones"},

		// Unknown/bot paths collapse to "other".
		{"/", "other"},
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/eclipse", "other"},
		{"/api/v1/eclipse/extra", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestRecordSearch(t *testing.T) {
	before := testutil.ToFloat64(oracleQueriesTotal)
	RecordSearch("exhaustive", 10*time.Millisecond, 86400)
	after := testutil.ToFloat64(oracleQueriesTotal)

	if after-before != 86400 {
		t.Errorf("oracle queries delta = %v, want 86400", after-before)
	}
}

func TestRecordOverlap(t *testing.T) {
	both := overlapDrawsTotal.WithLabelValues("both")
	targetOnly := overlapDrawsTotal.WithLabelValues("target_only")
	discarded := overlapDrawsTotal.WithLabelValues("discarded")

	b0, t0, d0 := testutil.ToFloat64(both), testutil.ToFloat64(targetOnly), testutil.ToFloat64(discarded)
	RecordOverlap(time.Millisecond, 10, 20, 70)

	if got := testutil.ToFloat64(both) - b0; got != 10 {
		t.Errorf("both delta = %v, want 10", got)
	}
	if got := testutil.ToFloat64(targetOnly) - t0; got != 20 {
		t.Errorf("target_only delta = %v, want 20", got)
	}
	if got := testutil.ToFloat64(discarded) - d0; got != 70 {
		t.Errorf("discarded delta = %v, want 70", got)
	}
}

// TestMiddlewareCardinality verifies that many unknown paths produce one
// "other" label.
func TestMiddlewareCardinality(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))
	for i := 0; i < 25; i++ {
		req := httptest.NewRequest("GET", "/scan/"+string(rune('a'+i)), nil)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("other", "GET", "404"))

	if after-before != 25 {
		t.Errorf("other/GET/404 delta = %v, want 25", after-before)
	}
}

func TestCacheAndLimiterMetrics(t *testing.T) {
	hit := cacheRequestsTotal.WithLabelValues("hit")
	h0 := testutil.ToFloat64(hit)
	RecordCacheLookup("hit")
	RecordCacheLookup("hit")
	if got := testutil.ToFloat64(hit) - h0; got != 2 {
		t.Errorf("cache hit delta = %v, want 2", got)
	}

	SetCacheEntries(17)
	if got := testutil.ToFloat64(cacheEntries); got != 17 {
		t.Errorf("cache entries = %v, want 17", got)
	}

	a0 := testutil.ToFloat64(computationsActive)
	IncComputationsActive()
	IncComputationsActive()
	DecComputationsActive()
	if got := testutil.ToFloat64(computationsActive) - a0; got != 1 {
		t.Errorf("active computations delta = %v, want 1", got)
	}
	DecComputationsActive()

	r0 := testutil.ToFloat64(computationsRejectedTotal)
	IncComputationsRejected()
	if got := testutil.ToFloat64(computationsRejectedTotal) - r0; got != 1 {
		t.Errorf("rejected delta = %v, want 1", got)
	}
}
