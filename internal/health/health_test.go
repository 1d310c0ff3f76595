package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckerSnapshot(t *testing.T) {
	c := NewChecker()

	c.Update(Status{
		FilePresent:  true,
		LastPoll:     time.Now(),
		CurrentCount: 4,
		Baselined:    true,
	})

	s := c.Snapshot()
	if !s.FilePresent {
		t.Error("Expected file_present to be true")
	}
	if s.CurrentCount != 4 {
		t.Errorf("Expected current count 4, got %d", s.CurrentCount)
	}
	if s.UptimeSecs < 0 {
		t.Errorf("Expected non-negative uptime, got %f", s.UptimeSecs)
	}
}

func TestStatusHandler(t *testing.T) {
	c := NewChecker()
	c.Update(Status{FilePresent: false, LastError: "log file not found"})

	rec := httptest.NewRecorder()
	c.StatusHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var s Status
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if s.FilePresent {
		t.Error("Expected file_present to be false")
	}
	if s.LastError != "log file not found" {
		t.Errorf("Unexpected last_error: %q", s.LastError)
	}
}

func TestLivenessHandler(t *testing.T) {
	c := NewChecker()

	rec := httptest.NewRecorder()
	c.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
}
