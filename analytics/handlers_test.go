package analytics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func postCollect(t *testing.T, e *echo.Echo, body string, headers map[string]string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/collect", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/120.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func countViews(t *testing.T, s *Store) string {
	t.Helper()
	res, err := s.Query(context.Background(), Query{StartDate: "today", EndDate: "today", Metrics: []string{"ga:pageviews"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	return res.Rows[0][0]
}

func newTestCollector(t *testing.T) (*echo.Echo, *Store) {
	t.Helper()
	s := setupTestStore(t)
	s.now = func() time.Time { return time.Now() }
	c := NewCollector(s)
	t.Cleanup(c.Close)
	e := echo.New()
	c.RegisterRoutes(e.Group(""))
	return e, s
}

func TestCollectRecordsVisit(t *testing.T) {
	e, s := newTestCollector(t)

	code := postCollect(t, e, `{"hostname":"example.com","path":"/a","referrer":"https://www.google.com/"}`, nil)
	if code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", code)
	}
	if got := countViews(t, s); got != "1" {
		t.Errorf("pageviews = %s, want 1", got)
	}
}

func TestCollectSkipsBotsAndDNT(t *testing.T) {
	e, s := newTestCollector(t)

	postCollect(t, e, `{"path":"/a","user_agent":"Googlebot/2.1"}`, nil)
	postCollect(t, e, `{"path":"/a"}`, map[string]string{"DNT": "1"})
	if got := countViews(t, s); got != "0" {
		t.Errorf("pageviews = %s, want 0", got)
	}
}

func TestCollectRejectsInvalidInput(t *testing.T) {
	e, _ := newTestCollector(t)

	for _, body := range []string{
		`{"path":""}`,
		`{"path":"/a","duration_sec":-1}`,
		`{"path":"/` + strings.Repeat("x", maxPathLen) + `"}`,
		`not json`,
	} {
		if code := postCollect(t, e, body, nil); code != http.StatusBadRequest {
			t.Errorf("body %.20q: status = %d, want 400", body, code)
		}
	}
}

func TestCollectDurationUpdatesExistingView(t *testing.T) {
	e, s := newTestCollector(t)

	postCollect(t, e, `{"path":"/a"}`, nil)
	postCollect(t, e, `{"path":"/a","duration_sec":45}`, nil)

	res, err := s.Query(context.Background(), Query{StartDate: "today", EndDate: "today", Metrics: []string{"ga:pageviews", "ga:timeOnPage"}})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if res.Rows[0][0] != "1" || res.Rows[0][1] != "45" {
		t.Errorf("row = %v, want [1 45]", res.Rows[0])
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two hits should pass")
	}
	if rl.allow("a") {
		t.Fatal("third hit should be limited")
	}
	if !rl.allow("b") {
		t.Fatal("limits are per key")
	}
	rl.sweep()
	if len(rl.hits) != 2 {
		t.Errorf("sweep dropped live keys: %v", rl.hits)
	}
}
