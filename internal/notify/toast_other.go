//go:build !windows

package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"

	"badgewatch/internal/badge"
)

// Toast shows desktop notifications on non-Windows platforms. The
// configured duration is accepted but the backends here take none.
type Toast struct{}

// newToast probes for a usable desktop notification channel
func newToast(time.Duration) (Notifier, error) {
	switch runtime.GOOS {
	case "darwin":
		if _, err := exec.LookPath("osascript"); err != nil {
			return nil, fmt.Errorf("osascript not found: %w", err)
		}
	default:
		if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" && os.Getenv("DISPLAY") == "" {
			return nil, fmt.Errorf("no desktop session detected")
		}
	}
	return &Toast{}, nil
}

// Notify shows a desktop notification
func (t *Toast) Notify(ctx context.Context, event badge.Event) error {
	return beeep.Notify(notifyTitle, message(event), "")
}

// Name returns the notifier name
func (t *Toast) Name() string {
	return "toast"
}
