package badge

// Kind classifies a badge-count transition
type Kind int

const (
	// Unchanged means no user-visible transition occurred
	Unchanged Kind = iota
	// Increased means the unread count grew
	Increased
	// Reset means a non-zero count returned to zero
	Reset
)

// String returns the kind as a metric/log label
func (k Kind) String() string {
	switch k {
	case Increased:
		return "increased"
	case Reset:
		return "reset"
	default:
		return "unchanged"
	}
}

// Event is the transition produced by a single observed count
type Event struct {
	Kind Kind
	From int
	To   int
}

// Tracker holds the last known badge count and classifies each newly
// observed count as a transition. It is owned by a single goroutine.
type Tracker struct {
	lastCount  int
	hasSeenAny bool
}

// NewTracker returns a tracker with no baseline yet
func NewTracker() *Tracker {
	return &Tracker{}
}

// Update records a newly observed count and returns the transition.
//
// The first observation after process start only establishes the
// baseline, so a fresh run never alerts for counts that predate it.
// On a decrease to a non-zero value the tracker stays silent but still
// adopts the new count, since the log may transiently report lower
// numbers.
func (t *Tracker) Update(newCount int) Event {
	if !t.hasSeenAny {
		t.hasSeenAny = true
		t.lastCount = newCount
		return Event{Kind: Unchanged, From: newCount, To: newCount}
	}

	prev := t.lastCount
	t.lastCount = newCount

	switch {
	case newCount > prev:
		return Event{Kind: Increased, From: prev, To: newCount}
	case newCount == 0 && prev > 0:
		return Event{Kind: Reset, From: prev, To: 0}
	default:
		return Event{Kind: Unchanged, From: prev, To: newCount}
	}
}

// LastCount returns the most recently observed count
func (t *Tracker) LastCount() int {
	return t.lastCount
}

// Baselined reports whether any count has been observed yet
func (t *Tracker) Baselined() bool {
	return t.hasSeenAny
}
