package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncWriteSplitsByResult(t *testing.T) {
	okBefore := testutil.ToFloat64(cacheWrites.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(cacheWrites.WithLabelValues("error"))

	IncWrite(true)
	IncWrite(true)
	IncWrite(false)

	if got := testutil.ToFloat64(cacheWrites.WithLabelValues("ok")); got != okBefore+2 {
		t.Fatalf("expected ok writes %v, got %v", okBefore+2, got)
	}
	if got := WriteCount(false); got != errBefore+1 {
		t.Fatalf("expected failed writes %v, got %v", errBefore+1, got)
	}
}

func TestIncBypassAndClean(t *testing.T) {
	before := testutil.ToFloat64(cacheBypass.WithLabelValues("POST"))
	IncBypass("POST")
	if got := testutil.ToFloat64(cacheBypass.WithLabelValues("POST")); got != before+1 {
		t.Fatalf("expected bypass counter to increase, got %v", got)
	}

	cleanBefore := testutil.ToFloat64(cacheCleans.WithLabelValues("error"))
	IncClean(false)
	if got := testutil.ToFloat64(cacheCleans.WithLabelValues("error")); got != cleanBefore+1 {
		t.Fatalf("expected clean failure counter to increase, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	Init()
	Init()
	ObserveRequest("GET", "200", 15*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/-/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"static_cache_http_requests_total",
		"static_cache_http_request_duration_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition output", name)
		}
	}
}
