package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"badgewatch/internal/badge"
	"badgewatch/internal/checkpoint"
	"badgewatch/internal/health"
	"badgewatch/internal/logging"
	"badgewatch/internal/metrics"
	"badgewatch/internal/pattern"
	"badgewatch/internal/tailer"
)

// Sink receives the badge events that survive a poll cycle. It must
// never block the loop for long and must not touch loop state.
type Sink interface {
	Dispatch(ctx context.Context, event badge.Event)
}

// Options configures the watch loop
type Options struct {
	Path          string
	Interval      time.Duration
	NotifyOnReset bool

	Tailer  *tailer.Tailer
	Rules   *pattern.Set
	Tracker *badge.Tracker
	Sink    Sink
	Logger  *logging.Logger

	// Optional collaborators
	Collector   *metrics.Collector
	Checker     *health.Checker
	Checkpoints *checkpoint.Store
}

// Loop polls the tailer on a fixed cadence, extracts badge counts from
// new lines, and forwards the cycle's final transition to the sink.
// Per-cycle failures are contained; only context cancellation stops it.
type Loop struct {
	opts     Options
	logger   *logging.Logger
	missing  bool
	notFound *rate.Limiter
	wake     chan struct{}
}

// New creates a watch loop. The interval must be positive.
func New(opts Options) (*Loop, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %v", opts.Interval)
	}
	if opts.Tailer == nil || opts.Rules == nil || opts.Tracker == nil || opts.Sink == nil {
		return nil, errors.New("tailer, rules, tracker and sink are required")
	}

	return &Loop{
		opts:   opts,
		logger: opts.Logger.WithComponent("watch"),
		// A missing file is reported once, then at most once a minute
		// until it reappears.
		notFound: rate.NewLimiter(rate.Every(time.Minute), 1),
		wake:     make(chan struct{}, 1),
	}, nil
}

// Run polls until the context is cancelled. It returns nil on a clean
// stop; recoverable poll failures never end the loop.
func (l *Loop) Run(ctx context.Context) error {
	watcher := l.startWatcher(ctx)
	if watcher != nil {
		defer watcher.Close()
	}

	ticker := time.NewTicker(l.opts.Interval)
	defer ticker.Stop()

	l.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("Watch loop stopped")
			return nil
		case <-ticker.C:
		case <-l.wake:
		}
		l.cycle(ctx)
	}
}

// startWatcher sets up fsnotify wake-ups on the log's directory so a
// write triggers an immediate poll instead of waiting out the tick.
// Failure to watch degrades to pure polling.
func (l *Loop) startWatcher(ctx context.Context) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.logger.Warn().Err(err).Msg("File watcher unavailable, relying on polling only")
		return nil
	}

	dir := filepath.Dir(l.opts.Path)
	if err := watcher.Add(dir); err != nil {
		l.logger.Warn().Err(err).Str("dir", dir).Msg("Failed to watch log directory, relying on polling only")
		watcher.Close()
		return nil
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != l.opts.Path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					select {
					case l.wake <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn().Err(err).Msg("File watcher error")
			case <-ctx.Done():
				return
			}
		}
	}()

	return watcher
}

// cycle runs one poll. Every failure path returns to idle.
func (l *Loop) cycle(ctx context.Context) {
	batch, err := l.opts.Tailer.Poll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.recordFailure(err)
		return
	}

	l.recordBatch(batch)

	var final badge.Event
	observed := false
	for _, line := range batch.Lines {
		count, ok := l.opts.Rules.Extract(line)
		if !ok {
			continue
		}
		if l.opts.Collector != nil {
			l.opts.Collector.CountsExtracted.Inc()
		}
		// Every extracted count updates the tracker in line order, but
		// only the final transition of the cycle is surfaced.
		final = l.opts.Tracker.Update(count)
		observed = true
	}

	if observed {
		l.emit(ctx, final)
	}

	moved := len(batch.Lines) > 0 || batch.Skipped > 0 || batch.Rotated || batch.Truncated
	if l.opts.Checkpoints != nil && moved {
		if err := l.opts.Checkpoints.Save(l.opts.Tailer.Position()); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to save checkpoint")
		}
	}

	l.setHealth(true, nil)
}

// emit records the cycle's final transition and forwards it to the
// sink when it should alert the user. Delivery runs on its own
// goroutine so a slow notifier never delays the next tick.
func (l *Loop) emit(ctx context.Context, event badge.Event) {
	if l.opts.Collector != nil {
		l.opts.Collector.BadgeEvents.WithLabelValues(event.Kind.String()).Inc()
		l.opts.Collector.CurrentBadge.Set(float64(l.opts.Tracker.LastCount()))
	}

	switch event.Kind {
	case badge.Increased:
		l.logger.Info().Int("from", event.From).Int("to", event.To).Msg("Badge count increased")
	case badge.Reset:
		l.logger.Info().Int("from", event.From).Msg("Badge count reset")
	default:
		l.logger.Debug().Int("count", event.To).Msg("Badge count observed")
	}

	if event.Kind == badge.Increased || (event.Kind == badge.Reset && l.opts.NotifyOnReset) {
		go l.opts.Sink.Dispatch(ctx, event)
	}
}

func (l *Loop) recordFailure(err error) {
	reason := "read"
	if errors.Is(err, tailer.ErrNotFound) {
		reason = "not_found"
		// Warn on the transition to missing, then at most once a
		// minute while it stays gone.
		allowed := l.notFound.Allow()
		if !l.missing || allowed {
			l.logger.Warn().Err(err).Msg("Log file missing, waiting for it to appear")
		}
		l.missing = true
	} else {
		l.logger.Warn().Err(err).Msg("Poll failed")
	}

	if l.opts.Collector != nil {
		l.opts.Collector.PollErrors.WithLabelValues(reason).Inc()
	}
	l.setHealth(false, err)
}

func (l *Loop) recordBatch(batch tailer.Batch) {
	l.missing = false

	if l.opts.Collector == nil {
		return
	}

	l.opts.Collector.PollCycles.Inc()
	l.opts.Collector.LinesRead.Add(float64(len(batch.Lines)))
	l.opts.Collector.LinesSkipped.Add(float64(batch.Skipped))
	if batch.Rotated {
		l.opts.Collector.Rotations.Inc()
	}
	if batch.Truncated {
		l.opts.Collector.Truncations.Inc()
	}
}

func (l *Loop) setHealth(filePresent bool, err error) {
	if l.opts.Checker == nil {
		return
	}
	status := health.Status{
		FilePresent:  filePresent,
		LastPoll:     time.Now(),
		CurrentCount: l.opts.Tracker.LastCount(),
		Baselined:    l.opts.Tracker.Baselined(),
	}
	if err != nil {
		status.LastError = err.Error()
	}
	l.opts.Checker.Update(status)
}
