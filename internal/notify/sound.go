package notify

import (
	"context"

	"github.com/gen2brain/beeep"

	"badgewatch/internal/badge"
)

// Sound plays an audible alert for an event
type Sound struct{}

// NewSound creates a sound notifier
func NewSound() *Sound {
	return &Sound{}
}

// Notify beeps. Reset events stay silent; clearing the badge is not
// worth interrupting the user for audibly.
func (s *Sound) Notify(ctx context.Context, event badge.Event) error {
	if event.Kind != badge.Increased {
		return nil
	}
	return beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration)
}

// Name returns the notifier name
func (s *Sound) Name() string {
	return "sound"
}
