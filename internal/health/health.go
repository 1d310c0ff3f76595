package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is a snapshot of the watcher's condition, updated by the
// watch loop after every cycle.
type Status struct {
	FilePresent  bool      `json:"file_present"`
	LastPoll     time.Time `json:"last_poll"`
	LastError    string    `json:"last_error,omitempty"`
	CurrentCount int       `json:"current_count"`
	Baselined    bool      `json:"baselined"`
	UptimeSecs   float64   `json:"uptime_seconds"`
}

// Checker holds the latest status and serves it over HTTP
type Checker struct {
	mu      sync.RWMutex
	status  Status
	started time.Time
}

// NewChecker creates a new health checker
func NewChecker() *Checker {
	return &Checker{started: time.Now()}
}

// Update replaces the current status snapshot
func (c *Checker) Update(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = s
}

// Snapshot returns the current status
func (c *Checker) Snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.status
	s.UptimeSecs = time.Since(c.started).Seconds()
	return s
}

// StatusHandler serves the status snapshot as JSON
func (c *Checker) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(c.Snapshot()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

// LivenessHandler reports that the process is alive. The loop retries
// recoverable failures forever, so liveness does not depend on the
// watched file being present.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
}
