package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"conti/internal/log"
)

type observation struct {
	route, method string
	code          int
}

type recordingObserver struct{ got []observation }

func (o *recordingObserver) ObserveHTTP(route, method string, code int, _ time.Duration) {
	o.got = append(o.got, observation{route, method, code})
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	obs := &recordingObserver{}
	m := NewMiddleware(Options{
		ExtractIP: func(*http.Request) string { return "9.9.9.9" },
		RouteName: func(*http.Request) string { return "/api/rooms/{room_id}/settlement" },
		Observer:  obs,
		Logger:    log.New(log.Config{Output: &buf, Format: log.FormatJSON}),
	})

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK) // ignored
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/rooms/abc/settlement", nil))

	if _, err := uuid.Parse(seenID); err != nil {
		t.Fatalf("request id %q is not a uuid", seenID)
	}
	if rr.Header().Get(HeaderRequestID) != seenID {
		t.Errorf("response header %q != context id %q", rr.Header().Get(HeaderRequestID), seenID)
	}
	want := observation{"/api/rooms/{room_id}/settlement", http.MethodGet, http.StatusNotFound}
	if len(obs.got) != 1 || obs.got[0] != want {
		t.Errorf("observations = %+v, want %+v", obs.got, want)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, seenID) {
		t.Errorf("log output missing warn level or request id: %s", out)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("total requests = %d", m.GetMetrics().TotalRequests)
	}
}

func TestMiddleware_PropagatesValidRequestID(t *testing.T) {
	m := NewMiddleware(Options{Logger: log.New(log.Config{Output: &bytes.Buffer{}})})
	incoming := uuid.NewString()

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, incoming)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != incoming {
		t.Errorf("request id = %q, want %q", seen, incoming)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "not a uuid")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen == "not a uuid" {
		t.Error("invalid incoming id must be replaced")
	}
}
