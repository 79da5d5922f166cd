package playback

import (
	"log/slog"
	"time"

	"github.com/cubby/cubby/internal/state"
)

// Syncer is the top-level coordinator between carousel selection and the
// remote player. It owns the auto-play timer, the navigation-pause
// autopilot, sync-to-playing, and autoplay-finish detection. All methods
// must be called from the update loop; nothing here is goroutine-safe.
type Syncer struct {
	requester     *Requester
	pause         func()
	resume        func()
	clearProgress func(contextURI string)
	log           *slog.Logger

	timerDelay   time.Duration
	cooldown     time.Duration
	recentWindow time.Duration

	// Auto-play timer: at most one armed item at a time.
	armedURI    string
	armedAt     time.Time
	lastFired   string
	lastFiredAt time.Time

	// Navigation pause.
	navPaused    bool
	navPausedURI string

	// Autoplay-finish detection.
	prevContext string
	prevPlaying bool
}

// NewSyncer builds a Syncer. pause and resume issue device commands
// without blocking; clearProgress drops the saved position for a context
// that finished naturally.
func NewSyncer(requester *Requester, pause, resume func(), clearProgress func(string), timerDelay, cooldown, recentWindow time.Duration, log *slog.Logger) *Syncer {
	if clearProgress == nil {
		clearProgress = func(string) {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{
		requester:     requester,
		pause:         pause,
		resume:        resume,
		clearProgress: clearProgress,
		timerDelay:    timerDelay,
		cooldown:      cooldown,
		recentWindow:  recentWindow,
		log:           log,
	}
}

// OnNavigate handles a selection change from fromURI to toURI. Leaving the
// playing item pauses it; returning to it before anything else happened
// resumes instead of replaying; landing anywhere else arms the auto-play
// timer unless the item is transient or already what the device has.
func (s *Syncer) OnNavigate(fromURI, toURI string, toTemp bool, snap state.Snapshot) {
	if fromURI == toURI {
		return
	}

	if snap.Playing && snap.ContextURI == fromURI {
		s.log.Debug("pausing for navigation", slog.String("context", fromURI))
		s.navPaused = true
		s.navPausedURI = fromURI
		s.pause()
	}

	if s.navPaused && toURI == s.navPausedURI {
		s.log.Debug("resuming after navigation", slog.String("context", toURI))
		s.CancelTimer()
		s.navPaused = false
		s.resume()
		return
	}

	if toTemp || (snap.Active() && snap.ContextURI == toURI) {
		s.CancelTimer()
		return
	}

	// Re-arming the same item keeps its original timestamp.
	if s.armedURI == toURI {
		return
	}
	s.armedURI = toURI
	s.armedAt = timeNow()
}

// CancelTimer disarms any pending auto-play.
func (s *Syncer) CancelTimer() {
	s.armedURI = ""
}

// ClearNavigationPause forgets a pending navigation pause, e.g. when the
// user toggles playback by hand.
func (s *Syncer) ClearNavigationPause() {
	s.navPaused = false
}

// Loading reports whether the UI should show a busy indicator.
func (s *Syncer) Loading() bool {
	return s.requester.Busy() || s.armedURI != "" || s.navPaused
}

// Tick advances the timer and decides whether the on-screen selection
// should be pulled to the externally playing context. onScreenURI is the
// currently selected item; the return value is the context to re-select,
// or "" for none.
func (s *Syncer) Tick(snap state.Snapshot, connected, settled, dragging bool, onScreenURI string) string {
	now := timeNow()

	// No device to play on; the user re-selects once it is back.
	if s.armedURI != "" && !connected {
		s.log.Debug("cancelling auto-play, device offline", slog.String("context", s.armedURI))
		s.armedURI = ""
	}

	if s.armedURI != "" && now.Sub(s.armedAt) >= s.timerDelay {
		uri := s.armedURI
		s.armedURI = ""
		s.lastFired = uri
		s.lastFiredAt = now
		s.log.Debug("auto-play timer fired", slog.String("context", uri))
		s.navPaused = false
		s.requester.Request(uri, false)
	}

	// A real state change overwrites a pending navigation pause.
	if s.navPaused && snap.Playing {
		s.navPaused = false
	}
	if s.navPaused && snap.Active() && snap.ContextURI != s.navPausedURI {
		s.navPaused = false
	}

	if !connected || dragging || !settled || s.armedURI != "" {
		return ""
	}
	if !snap.Active() || snap.ContextURI == "" || snap.ContextURI == onScreenURI {
		return ""
	}
	if now.Sub(s.lastFiredAt) < s.cooldown {
		return ""
	}
	if snap.ContextURI == s.lastFired && now.Sub(s.lastFiredAt) < 2*s.cooldown {
		// Echo of our own play landing late.
		return ""
	}
	return snap.ContextURI
}

// OnStatus watches for a context that finished naturally: the device moved
// to a different context while playing, with no local play action behind
// it. The finished context's saved progress is cleared so it starts fresh
// next time.
func (s *Syncer) OnStatus(snap state.Snapshot) {
	defer func() {
		s.prevContext = snap.ContextURI
		s.prevPlaying = snap.Playing
	}()

	if !s.prevPlaying || !snap.Playing {
		return
	}
	if snap.ContextURI == s.prevContext || s.prevContext == "" {
		return
	}

	lastURI, lastAt := s.requester.LastRequested()
	if snap.ContextURI == lastURI {
		return
	}
	if timeNow().Sub(lastAt) < s.recentWindow {
		return
	}

	s.log.Info("context finished naturally", slog.String("context", s.prevContext))
	s.clearProgress(s.prevContext)
}
