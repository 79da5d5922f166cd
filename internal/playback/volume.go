package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cubby/cubby/internal/sysvol"
)

// VolumeMode says who owns loudness: the local mixer ladder or a remote
// controller such as a phone app.
type VolumeMode int

const (
	ModeLocal VolumeMode = iota
	ModeRemote
)

func (m VolumeMode) String() string {
	if m == ModeRemote {
		return "remote"
	}
	return "local"
}

// VolumeArbiter decides who controls loudness. In local mode the device
// volume is pinned at 100 and the ladder level is applied to the local
// mixer. When a remote controller moves the device volume below the
// takeover threshold, the arbiter yields; when the remote volume is pushed
// to the threshold or above, it takes ownership back.
//
// Device volume reports caused by the arbiter's own writes echo back
// through the poll loop; reports inside the echo window are ignored so the
// arbiter never reacts to itself.
type VolumeArbiter struct {
	levels     []int
	threshold  int
	echoWindow time.Duration
	mixer      sysvol.Setter
	setRemote  func(level int)
	log        *slog.Logger

	mu         sync.Mutex
	mode       VolumeMode
	idx        int
	lastRemote int
	echoUntil  time.Time
	pinned     bool
}

// NewVolumeArbiter builds a VolumeArbiter starting in local mode at the
// middle ladder level. setRemote issues the device volume command and must
// not block.
func NewVolumeArbiter(levels []int, threshold int, echoWindow time.Duration, mixer sysvol.Setter, setRemote func(int), log *slog.Logger) *VolumeArbiter {
	if len(levels) == 0 {
		levels = []int{60, 70, 80}
	}
	if mixer == nil {
		mixer = sysvol.Null{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &VolumeArbiter{
		levels:     levels,
		threshold:  threshold,
		echoWindow: echoWindow,
		mixer:      mixer,
		setRemote:  setRemote,
		log:        log,
		idx:        len(levels) / 2,
		lastRemote: 100,
	}
}

// Mode returns the current ownership mode.
func (v *VolumeArbiter) Mode() VolumeMode {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.mode
}

// Level returns the current ladder level.
func (v *VolumeArbiter) Level() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.levels[v.idx]
}

// Toggle is the volume button. In local mode it advances the ladder; in
// remote mode it takes ownership back at the remembered ladder level.
func (v *VolumeArbiter) Toggle() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.mode == ModeRemote {
		v.takeOverLocked()
		return
	}
	v.idx = (v.idx + 1) % len(v.levels)
	v.log.Debug("volume level", slog.Int("level", v.levels[v.idx]))
	// A stale device report must not flip ownership right after the user
	// pressed the button.
	v.markEchoLocked()
	v.mixer.Set(v.levels[v.idx])
}

// Observe processes the device volume from a status poll. vol is nil when
// the device did not report one.
func (v *VolumeArbiter) Observe(vol *int) {
	if vol == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lastRemote = *vol
	if timeNow().Before(v.echoUntil) {
		return
	}

	switch v.mode {
	case ModeLocal:
		if *vol < v.threshold {
			v.log.Info("remote controller took volume", slog.Int("remote", *vol))
			v.mode = ModeRemote
			// Open the local mixer fully so the remote attenuation is
			// what the listener hears.
			v.mixer.Set(100)
		}
	case ModeRemote:
		if *vol >= v.threshold {
			v.log.Info("taking volume back", slog.Int("remote", *vol))
			v.takeOverLocked()
		}
	}
}

// EnsureRemotePinned pins the device volume at 100 once so the local mixer
// is the only attenuator. Call it after the first successful poll.
func (v *VolumeArbiter) EnsureRemotePinned() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pinned || v.mode != ModeLocal {
		return
	}
	v.pinned = true
	v.markEchoLocked()
	v.setRemote(100)
	v.mixer.Set(v.levels[v.idx])
}

// OnReconnect re-establishes local ownership after the device comes back;
// its volume state is unknown at that point.
func (v *VolumeArbiter) OnReconnect() {
	v.mu.Lock()
	v.mode = ModeLocal
	v.pinned = false
	v.mu.Unlock()
	v.EnsureRemotePinned()
}

// DisplayLevel is what the volume icon shows: the ladder level in local
// mode, the top of the ladder while a remote controller owns it.
func (v *VolumeArbiter) DisplayLevel() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == ModeRemote {
		return v.levels[len(v.levels)-1]
	}
	return v.levels[v.idx]
}

// EffectiveLevel reports the level the listener currently hears, whichever
// side owns it.
func (v *VolumeArbiter) EffectiveLevel() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == ModeRemote {
		return v.lastRemote
	}
	return v.levels[v.idx]
}

// SetEffective drives whichever volume currently matters. Used by the
// auto-pause fade.
func (v *VolumeArbiter) SetEffective(level int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mode == ModeRemote {
		v.markEchoLocked()
		v.setRemote(level)
		return
	}
	v.mixer.Set(level)
}

func (v *VolumeArbiter) takeOverLocked() {
	v.mode = ModeLocal
	v.markEchoLocked()
	v.setRemote(100)
	v.mixer.Set(v.levels[v.idx])
}

func (v *VolumeArbiter) markEchoLocked() {
	v.echoUntil = timeNow().Add(v.echoWindow)
}
