package playback

import (
	"testing"
	"time"
)

type recordingMixer struct {
	levels []int
}

func (m *recordingMixer) Set(level int) { m.levels = append(m.levels, level) }

func (m *recordingMixer) last() int {
	if len(m.levels) == 0 {
		return -1
	}
	return m.levels[len(m.levels)-1]
}

func newTestArbiter(t *testing.T) (*VolumeArbiter, *recordingMixer, *[]int) {
	t.Helper()
	mixer := &recordingMixer{}
	var remote []int
	v := NewVolumeArbiter([]int{60, 70, 80}, 95, 2*time.Second, mixer,
		func(level int) { remote = append(remote, level) }, discardLog())
	return v, mixer, &remote
}

func intPtr(v int) *int { return &v }

func TestToggleCyclesLadder(t *testing.T) {
	v, mixer, _ := newTestArbiter(t)

	if v.Level() != 70 {
		t.Fatalf("start level = %d, want middle of ladder", v.Level())
	}
	v.Toggle()
	v.Toggle()
	v.Toggle()
	if got := mixer.levels; len(got) != 3 || got[0] != 80 || got[1] != 60 || got[2] != 70 {
		t.Errorf("mixer levels = %v, want 80 60 70", got)
	}
}

func TestToggleOpensEchoWindow(t *testing.T) {
	now := time.Now()
	clockAt(t, &now)
	v, _, _ := newTestArbiter(t)

	v.Toggle()
	now = now.Add(time.Second)
	v.Observe(intPtr(50))
	if v.Mode() != ModeLocal {
		t.Fatal("report inside the echo window of a local change flipped ownership")
	}

	now = now.Add(2 * time.Second)
	v.Observe(intPtr(50))
	if v.Mode() != ModeRemote {
		t.Fatal("report outside the window should yield ownership")
	}
}

func TestRemoteTakesOwnershipBelowThreshold(t *testing.T) {
	now := time.Now()
	clockAt(t, &now)
	v, mixer, _ := newTestArbiter(t)

	v.Observe(intPtr(50))
	if v.Mode() != ModeRemote {
		t.Fatal("remote volume below threshold should yield ownership")
	}
	if mixer.last() != 100 {
		t.Errorf("mixer = %d, want opened to 100 under remote control", mixer.last())
	}
	if v.EffectiveLevel() != 50 {
		t.Errorf("effective level = %d, want the remote's 50", v.EffectiveLevel())
	}
}

func TestLocalTakesBackAtThreshold(t *testing.T) {
	now := time.Now()
	clockAt(t, &now)
	v, mixer, remote := newTestArbiter(t)

	v.Observe(intPtr(50))
	now = now.Add(3 * time.Second)
	v.Observe(intPtr(97))

	if v.Mode() != ModeLocal {
		t.Fatal("remote at threshold should hand ownership back")
	}
	if len(*remote) == 0 || (*remote)[len(*remote)-1] != 100 {
		t.Errorf("remote writes = %v, want pinned back to 100", *remote)
	}
	if mixer.last() != 70 {
		t.Errorf("mixer = %d, want ladder level restored", mixer.last())
	}
}

func TestEchoWindowSuppressesSelfReaction(t *testing.T) {
	now := time.Now()
	clockAt(t, &now)
	v, _, remote := newTestArbiter(t)

	v.EnsureRemotePinned()
	if len(*remote) != 1 || (*remote)[0] != 100 {
		t.Fatalf("remote writes = %v, want one pin to 100", *remote)
	}

	// The device reports our own write back, possibly rounded down.
	now = now.Add(time.Second)
	v.Observe(intPtr(88))
	if v.Mode() != ModeLocal {
		t.Fatal("echoed report inside the window flipped ownership")
	}

	// Outside the window the same report means a real remote controller.
	now = now.Add(2 * time.Second)
	v.Observe(intPtr(88))
	if v.Mode() != ModeRemote {
		t.Fatal("report outside the window should yield ownership")
	}
}

func TestEnsureRemotePinnedIsOnce(t *testing.T) {
	v, _, remote := newTestArbiter(t)
	v.EnsureRemotePinned()
	v.EnsureRemotePinned()
	if len(*remote) != 1 {
		t.Errorf("remote writes = %v, want a single pin", *remote)
	}
}

func TestReconnectRepins(t *testing.T) {
	now := time.Now()
	clockAt(t, &now)
	v, mixer, remote := newTestArbiter(t)

	v.EnsureRemotePinned()
	now = now.Add(3 * time.Second)
	v.Observe(intPtr(40))
	if v.Mode() != ModeRemote {
		t.Fatal("setup: expected remote mode")
	}

	v.OnReconnect()
	if v.Mode() != ModeLocal {
		t.Fatal("reconnect should re-establish local ownership")
	}
	if (*remote)[len(*remote)-1] != 100 {
		t.Errorf("remote writes = %v, want re-pinned to 100", *remote)
	}
	if mixer.last() != 70 {
		t.Errorf("mixer = %d, want ladder level", mixer.last())
	}
}

func TestDisplayLevelShowsMaxUnderRemoteControl(t *testing.T) {
	now := time.Now()
	clockAt(t, &now)
	v, _, _ := newTestArbiter(t)

	if v.DisplayLevel() != 70 {
		t.Errorf("local display = %d, want the ladder level", v.DisplayLevel())
	}

	v.Observe(intPtr(40))
	if v.Mode() != ModeRemote {
		t.Fatal("setup: expected remote mode")
	}
	if v.DisplayLevel() != 80 {
		t.Errorf("remote display = %d, want the top of the ladder", v.DisplayLevel())
	}
	if v.EffectiveLevel() != 40 {
		t.Errorf("effective level = %d, want the remote's 40", v.EffectiveLevel())
	}
}

func TestObserveNilIsIgnored(t *testing.T) {
	v, mixer, _ := newTestArbiter(t)
	v.Observe(nil)
	if v.Mode() != ModeLocal || len(mixer.levels) != 0 {
		t.Error("nil volume report should change nothing")
	}
}
