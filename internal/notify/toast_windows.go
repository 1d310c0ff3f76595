//go:build windows

package notify

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/go-toast/toast"

	"badgewatch/internal/badge"
)

// Toast shows native Windows toast notifications
type Toast struct {
	duration toast.Duration
}

// newToast probes for toast support. Toasts are pushed through
// PowerShell, so its absence means no toast capability.
func newToast(duration time.Duration) (Notifier, error) {
	if _, err := exec.LookPath("powershell"); err != nil {
		return nil, fmt.Errorf("powershell not found: %w", err)
	}

	d := toast.Short
	if duration > 5*time.Second {
		d = toast.Long
	}
	return &Toast{duration: d}, nil
}

// Notify shows a toast
func (t *Toast) Notify(ctx context.Context, event badge.Event) error {
	n := toast.Notification{
		AppID:    "badgewatch",
		Title:    notifyTitle,
		Message:  message(event),
		Duration: t.duration,
	}
	return n.Push()
}

// Name returns the notifier name
func (t *Toast) Name() string {
	return "toast"
}
