package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSettlement(t *testing.T) {
	m := New()
	m.ObserveSettlement(2*time.Millisecond, 3, nil)
	m.ObserveSettlement(time.Millisecond, 0, errors.New("boom"))

	if got := testutil.ToFloat64(m.SettlementsComputed.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok = %v", got)
	}
	if got := testutil.ToFloat64(m.SettlementsComputed.WithLabelValues("error")); got != 1 {
		t.Errorf("error = %v", got)
	}
}

func TestCacheAndEvents(t *testing.T) {
	m := New()
	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	m.ObservePublish("settlement.computed", nil)
	m.ObserveExport(errors.New("quota"))

	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("settlement.computed", "ok")); got != 1 {
		t.Errorf("published = %v", got)
	}
	if got := testutil.ToFloat64(m.Exports.WithLabelValues("error")); got != 1 {
		t.Errorf("export errors = %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/rooms/{room_id}/settlement", http.MethodGet, 200, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"conti_http_requests_total", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %s", want)
		}
	}
}
