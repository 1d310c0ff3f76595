package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"badgewatch/internal/badge"
	"badgewatch/internal/config"
	"badgewatch/internal/logging"
	"badgewatch/internal/metrics"
	"badgewatch/internal/reliability"
)

// notifyTitle is the headline used by every backend
const notifyTitle = "Teams activity"

// Notifier delivers a badge event to the user. Implementations must be
// safe to call from a goroutine other than the watch loop and must not
// touch watcher state.
type Notifier interface {
	Notify(ctx context.Context, event badge.Event) error
	Name() string
}

// message renders the user-facing text for an event
func message(event badge.Event) string {
	switch event.Kind {
	case badge.Increased:
		if event.To == 1 {
			return "You have 1 unread item."
		}
		return fmt.Sprintf("You have %d unread items.", event.To)
	case badge.Reset:
		return "All notifications have been cleared."
	default:
		return ""
	}
}

// Console prints notifications as timestamped lines
type Console struct {
	out io.Writer
}

// NewConsole creates a console notifier writing to w, or stdout when
// w is nil
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{out: w}
}

// Notify prints the event
func (c *Console) Notify(ctx context.Context, event badge.Event) error {
	ts := time.Now().Format("15:04:05")
	_, err := fmt.Fprintf(c.out, "[%s] %s: %s\n", ts, notifyTitle, message(event))
	return err
}

// Name returns the notifier name
func (c *Console) Name() string {
	return "console"
}

// Dispatcher fans a badge event out to every enabled backend. Delivery
// failures are retried with backoff, logged and counted, and never
// propagate to the caller.
type Dispatcher struct {
	notifiers []Notifier
	logger    *logging.Logger
	collector *metrics.Collector
	retry     reliability.RetryConfig
}

// NewDispatcher selects backends once at startup. The console backend
// is always present; toast and sound are added when enabled and the
// platform capability probe passes, otherwise the dispatcher degrades
// to console output with a warning.
func NewDispatcher(cfg config.NotifyConfig, logger *logging.Logger, collector *metrics.Collector) *Dispatcher {
	log := logger.WithComponent("notify")

	notifiers := []Notifier{NewConsole(nil)}

	if cfg.Toast {
		if t, err := newToast(cfg.ToastDuration); err != nil {
			log.Warn().Err(err).Msg("Toast notifications unavailable, falling back to console")
		} else {
			notifiers = append(notifiers, t)
		}
	}

	if cfg.Sound {
		notifiers = append(notifiers, NewSound())
	}

	return &Dispatcher{
		notifiers: notifiers,
		logger:    log,
		collector: collector,
		retry: reliability.RetryConfig{
			MaxRetries:     2,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Jitter:         true,
		},
	}
}

// Backends returns the names of the selected notifiers
func (d *Dispatcher) Backends() []string {
	names := make([]string, len(d.notifiers))
	for i, n := range d.notifiers {
		names[i] = n.Name()
	}
	return names
}

// Dispatch delivers the event through every backend. It blocks until
// all deliveries settle, so run it on its own goroutine when the
// caller must not wait.
func (d *Dispatcher) Dispatch(ctx context.Context, event badge.Event) {
	for _, n := range d.notifiers {
		err := reliability.Retry(ctx, d.retry, func(ctx context.Context) error {
			return n.Notify(ctx, event)
		})
		if err != nil {
			d.logger.Warn().
				Err(err).
				Str("notifier", n.Name()).
				Msg("Failed to deliver notification")
			if d.collector != nil {
				d.collector.NotifyFailures.WithLabelValues(n.Name()).Inc()
			}
			continue
		}
		if d.collector != nil {
			d.collector.NotifySent.WithLabelValues(n.Name()).Inc()
		}
	}
}
