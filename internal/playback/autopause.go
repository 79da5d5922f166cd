package playback

import (
	"log/slog"
	"sync"
	"time"
)

type pausePhase int

const (
	phaseIdle pausePhase = iota
	phaseArmed
	phaseFading
)

// AutoPause stops unattended playback. Once the same context has been
// playing continuously for the configured timeout, the volume is faded to
// zero and the device paused; the pre-fade level comes back shortly after
// the pause lands, so the next play is audible wherever it starts from.
type AutoPause struct {
	timeout time.Duration
	fade    time.Duration
	steps   int

	pause     func()
	setVolume func(level int)
	level     func() int
	run       func(func())
	log       *slog.Logger

	mu             sync.Mutex
	phase          pausePhase
	contextURI     string
	deadline       time.Time
	restoreLevel   int
	restorePending bool
}

// NewAutoPause builds an AutoPause. pause and setVolume issue the device
// commands; level reports the current volume level to fade from; run
// executes the fade (nil means a fresh goroutine).
func NewAutoPause(timeout, fade time.Duration, pause func(), setVolume func(int), level func() int, run func(func()), log *slog.Logger) *AutoPause {
	if run == nil {
		run = func(f func()) { go f() }
	}
	if log == nil {
		log = slog.Default()
	}
	return &AutoPause{
		timeout:   timeout,
		fade:      fade,
		steps:     20,
		pause:     pause,
		setVolume: setVolume,
		level:     level,
		run:       run,
		log:       log,
	}
}

// OnPlay notes that a context started (or kept) playing. The countdown
// only restarts when the context actually changes, so track changes within
// an album do not reset it.
func (a *AutoPause) OnPlay(contextURI string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase == phaseArmed && contextURI == a.contextURI {
		return
	}
	if a.phase == phaseFading {
		return
	}
	a.contextURI = contextURI
	a.deadline = timeNow().Add(a.timeout)
	a.phase = phaseArmed
}

// OnStop disarms the countdown when playback pauses or stops.
func (a *AutoPause) OnStop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase == phaseFading {
		return
	}
	a.phase = phaseIdle
}

// Tick checks the deadline. Call it regularly with the current playing
// state.
func (a *AutoPause) Tick(playing bool) {
	if !playing {
		a.OnStop()
		return
	}

	a.mu.Lock()
	if a.phase != phaseArmed || timeNow().Before(a.deadline) {
		a.mu.Unlock()
		return
	}
	a.phase = phaseFading
	contextURI := a.contextURI
	a.mu.Unlock()

	from := a.level()
	a.log.Info("auto-pausing after inactivity",
		slog.String("context", contextURI), slog.Int("from_level", from))
	a.run(func() { a.fadeOut(from) })
}

// RestoreVolumeIfNeeded puts the volume back where it was before an
// auto-pause fade. The fade schedules this itself once the pause has
// settled; a resume arriving sooner consumes the restore early.
func (a *AutoPause) RestoreVolumeIfNeeded() {
	a.mu.Lock()
	if !a.restorePending {
		a.mu.Unlock()
		return
	}
	a.restorePending = false
	level := a.restoreLevel
	a.mu.Unlock()
	a.setVolume(level)
}

// restoreDelay is how long after the pause lands before the pre-fade
// volume is put back.
const restoreDelay = 500 * time.Millisecond

func (a *AutoPause) fadeOut(from int) {
	step := a.fade / time.Duration(a.steps)
	for i := a.steps - 1; i >= 0; i-- {
		a.setVolume(from * i / a.steps)
		sleep(step)
	}
	a.pause()

	a.mu.Lock()
	a.restoreLevel = from
	a.restorePending = true
	a.phase = phaseIdle
	a.mu.Unlock()

	sleep(restoreDelay)
	a.RestoreVolumeIfNeeded()
}
