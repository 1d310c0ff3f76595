package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.LinesRead.Add(3)
	c.CountsExtracted.Inc()
	c.BadgeEvents.WithLabelValues("increased").Inc()
	c.CurrentBadge.Set(7)
	c.PollErrors.WithLabelValues("not_found").Inc()

	if got := testutil.ToFloat64(c.LinesRead); got != 3 {
		t.Errorf("Expected 3 lines read, got %f", got)
	}
	if got := testutil.ToFloat64(c.CurrentBadge); got != 7 {
		t.Errorf("Expected current badge 7, got %f", got)
	}
	if got := testutil.ToFloat64(c.BadgeEvents.WithLabelValues("increased")); got != 1 {
		t.Errorf("Expected 1 increased event, got %f", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector()
	c.PollCycles.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "badgewatch_watch_poll_cycles_total") {
		t.Error("Expected the poll cycle counter in the scrape output")
	}
}

func TestCollectorRegistriesAreIndependent(t *testing.T) {
	// Two collectors must not collide on registration.
	a := NewCollector()
	b := NewCollector()

	a.LinesRead.Inc()
	if got := testutil.ToFloat64(b.LinesRead); got != 0 {
		t.Errorf("Expected independent counters, got %f", got)
	}
}
