package watch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"badgewatch/internal/badge"
	"badgewatch/internal/logging"
	"badgewatch/internal/pattern"
	"badgewatch/internal/tailer"
)

type recordingSink struct {
	mu     sync.Mutex
	events []badge.Event
	ch     chan badge.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan badge.Event, 16)}
}

func (s *recordingSink) Dispatch(ctx context.Context, event badge.Event) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.ch <- event
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func waitEvent(t *testing.T, sink *recordingSink, timeout time.Duration) badge.Event {
	t.Helper()
	select {
	case ev := <-sink.ch:
		return ev
	case <-time.After(timeout):
		t.Fatal("Timed out waiting for a notification")
		return badge.Event{}
	}
}

func newTestLoop(t *testing.T, path string, replay bool, sink Sink, notifyOnReset bool) *Loop {
	t.Helper()
	rules, err := pattern.NewSet(nil)
	if err != nil {
		t.Fatalf("Failed to build pattern set: %v", err)
	}

	loop, err := New(Options{
		Path:          path,
		Interval:      10 * time.Millisecond,
		NotifyOnReset: notifyOnReset,
		Tailer:        tailer.New(path, replay, logging.Nop()),
		Rules:         rules,
		Tracker:       badge.NewTracker(),
		Sink:          sink,
		Logger:        logging.Nop(),
	})
	if err != nil {
		t.Fatalf("Failed to create loop: %v", err)
	}
	return loop
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
}

func TestLoopBaselineThenIncrease(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "teams.log")
	if err := os.WriteFile(logFile, nil, 0644); err != nil {
		t.Fatalf("Failed to create log file: %v", err)
	}

	sink := newRecordingSink()
	loop := newTestLoop(t, logFile, false, sink, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Let the first cycle establish the tail position.
	time.Sleep(100 * time.Millisecond)

	// The very first observed count only sets the baseline; it must
	// not alert, even though it is non-zero.
	appendLine(t, logFile, `"missedActivityCount": 4`)
	time.Sleep(150 * time.Millisecond)
	if n := sink.count(); n != 0 {
		t.Fatalf("Expected no notification for the baseline, got %d", n)
	}

	appendLine(t, logFile, `"missedActivityCount": 9`)
	ev := waitEvent(t, sink, 2*time.Second)
	if ev.Kind != badge.Increased {
		t.Errorf("Expected an increased event, got %v", ev.Kind)
	}
	if ev.From != 4 || ev.To != 9 {
		t.Errorf("Expected transition 4 -> 9, got %d -> %d", ev.From, ev.To)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Expected a clean stop, got %v", err)
	}
	if n := sink.count(); n != 1 {
		t.Errorf("Expected exactly one notification, got %d", n)
	}
}

func TestLoopCollapsesToLastEvent(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "teams.log")
	content := `"missedActivityCount": 1` + "\n" +
		`"missedActivityCount": 3` + "\n" +
		`"missedActivityCount": 5` + "\n"
	if err := os.WriteFile(logFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write log file: %v", err)
	}

	sink := newRecordingSink()
	loop := newTestLoop(t, logFile, true, sink, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	// All three counts arrive in one batch: 1 baselines, 3 and 5 both
	// increase, and only the final transition is surfaced.
	ev := waitEvent(t, sink, 2*time.Second)
	if ev.Kind != badge.Increased {
		t.Errorf("Expected an increased event, got %v", ev.Kind)
	}
	if ev.From != 3 || ev.To != 5 {
		t.Errorf("Expected transition 3 -> 5, got %d -> %d", ev.From, ev.To)
	}

	time.Sleep(100 * time.Millisecond)
	if n := sink.count(); n != 1 {
		t.Errorf("Expected one collapsed notification, got %d", n)
	}
}

func TestLoopResetNotification(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "teams.log")
	if err := os.WriteFile(logFile, []byte(`"badgeCount": 6`+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write log file: %v", err)
	}

	sink := newRecordingSink()
	loop := newTestLoop(t, logFile, true, sink, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	appendLine(t, logFile, `"badgeCount": 0`)
	ev := waitEvent(t, sink, 2*time.Second)
	if ev.Kind != badge.Reset {
		t.Errorf("Expected a reset event, got %v", ev.Kind)
	}
	if ev.From != 6 {
		t.Errorf("Expected reset from 6, got %d", ev.From)
	}
}

func TestLoopQuietReset(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "teams.log")
	if err := os.WriteFile(logFile, []byte(`"badgeCount": 6`+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write log file: %v", err)
	}

	sink := newRecordingSink()
	loop := newTestLoop(t, logFile, true, sink, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	time.Sleep(100 * time.Millisecond)

	appendLine(t, logFile, `"badgeCount": 0`)
	time.Sleep(150 * time.Millisecond)
	if n := sink.count(); n != 0 {
		t.Errorf("Expected no notification for a quiet reset, got %d", n)
	}
}

func TestLoopSurvivesMissingFile(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "teams.log")

	sink := newRecordingSink()
	loop := newTestLoop(t, logFile, true, sink, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	// The file does not exist yet; the loop must keep retrying.
	time.Sleep(100 * time.Millisecond)

	appendLine(t, logFile, `"missedActivityCount": 2`)
	time.Sleep(100 * time.Millisecond)
	appendLine(t, logFile, `"missedActivityCount": 8`)

	ev := waitEvent(t, sink, 2*time.Second)
	if ev.Kind != badge.Increased {
		t.Errorf("Expected an increased event after the file appeared, got %v", ev.Kind)
	}
	if ev.To != 8 {
		t.Errorf("Expected count 8, got %d", ev.To)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLoopDebouncesMissingFileWarnings(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "absent.log")

	var out syncBuffer
	logger := logging.New(logging.Config{
		Level:  "warn",
		Format: "json",
		Output: &out,
	})

	rules, err := pattern.NewSet(nil)
	if err != nil {
		t.Fatalf("Failed to build pattern set: %v", err)
	}

	loop, err := New(Options{
		Path:          logFile,
		Interval:      10 * time.Millisecond,
		NotifyOnReset: true,
		Tailer:        tailer.New(logFile, false, logging.Nop()),
		Rules:         rules,
		Tracker:       badge.NewTracker(),
		Sink:          newRecordingSink(),
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("Failed to create loop: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	// Roughly twenty ticks against a missing file.
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	warnings := strings.Count(out.String(), "Log file missing")
	if warnings != 1 {
		t.Errorf("Expected exactly one missing-file warning, got %d:\n%s", warnings, out.String())
	}
}

func TestNewValidation(t *testing.T) {
	rules, _ := pattern.NewSet(nil)
	opts := Options{
		Path:     "/tmp/x.log",
		Interval: 0,
		Tailer:   tailer.New("/tmp/x.log", false, logging.Nop()),
		Rules:    rules,
		Tracker:  badge.NewTracker(),
		Sink:     newRecordingSink(),
		Logger:   logging.Nop(),
	}

	if _, err := New(opts); err == nil {
		t.Error("Expected an error for a non-positive interval")
	}

	opts.Interval = time.Second
	opts.Sink = nil
	if _, err := New(opts); err == nil {
		t.Error("Expected an error for a missing sink")
	}
}
