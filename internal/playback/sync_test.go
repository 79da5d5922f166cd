package playback

import (
	"testing"
	"time"

	"github.com/cubby/cubby/internal/state"
)

func newTestSyncer(t *testing.T, sink *fakeSink, cleared *[]string) *Syncer {
	t.Helper()
	r := NewRequester(sink, nil, nil, time.Millisecond, time.Millisecond, nil, discardLog())
	clear := func(string) {}
	if cleared != nil {
		clear = func(uri string) { *cleared = append(*cleared, uri) }
	}
	return NewSyncer(r,
		func() { sink.record(sinkCall{op: "pause"}) },
		func() { sink.record(sinkCall{op: "resume"}) },
		clear,
		time.Second, 3*time.Second, 5*time.Second, discardLog())
}

func TestSwipeBurstFiresOnlyLastItem(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{started: make(chan string, 4)}
	s := newTestSyncer(t, sink, nil)
	empty := state.Empty()

	s.OnNavigate("spotify:album:0", "spotify:album:1", false, empty)
	now = now.Add(200 * time.Millisecond)
	s.OnNavigate("spotify:album:1", "spotify:album:2", false, empty)
	now = now.Add(200 * time.Millisecond)
	s.OnNavigate("spotify:album:2", "spotify:album:3", false, empty)

	// Not yet: the last arm is only 0ms old.
	if got := s.Tick(empty, true, true, false, "spotify:album:3"); got != "" {
		t.Errorf("Tick returned sync target %q during arm", got)
	}
	if len(sink.callsOf("play")) != 0 {
		t.Fatal("timer fired early")
	}

	now = now.Add(time.Second)
	s.Tick(empty, true, true, false, "spotify:album:3")

	uri := waitChan(t, sink.started, "auto-play")
	if uri != "spotify:album:3" {
		t.Errorf("auto-played %q, want item 3", uri)
	}
	time.Sleep(20 * time.Millisecond)
	if plays := sink.callsOf("play"); len(plays) != 1 {
		t.Errorf("plays = %v, want exactly one", plays)
	}
}

func TestRearmSameItemKeepsTimestamp(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{started: make(chan string, 4)}
	s := newTestSyncer(t, sink, nil)
	empty := state.Empty()

	s.OnNavigate("spotify:album:0", "spotify:album:1", false, empty)
	now = now.Add(600 * time.Millisecond)
	s.OnNavigate("spotify:album:0", "spotify:album:1", false, empty)
	now = now.Add(500 * time.Millisecond)

	// 1.1s since the first arm: fires even though the re-arm was recent.
	s.Tick(empty, true, true, false, "spotify:album:1")
	waitChan(t, sink.started, "auto-play")
}

func TestTransientItemNeverAutoPlays(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{}
	s := newTestSyncer(t, sink, nil)
	empty := state.Empty()

	s.OnNavigate("spotify:album:0", "spotify:album:temp", true, empty)
	now = now.Add(2 * time.Second)
	s.Tick(empty, true, true, false, "spotify:album:temp")

	time.Sleep(20 * time.Millisecond)
	if len(sink.callsOf("play")) != 0 {
		t.Error("transient item auto-played")
	}
}

func TestTimerCancelledWhileDisconnected(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{}
	s := newTestSyncer(t, sink, nil)
	empty := state.Empty()

	s.OnNavigate("spotify:album:0", "spotify:album:1", false, empty)
	now = now.Add(2 * time.Second)
	s.Tick(empty, false, true, false, "spotify:album:1")

	time.Sleep(20 * time.Millisecond)
	if len(sink.callsOf("play")) != 0 {
		t.Fatal("armed item played while disconnected")
	}

	// Coming back does not revive the cancelled arm.
	now = now.Add(2 * time.Second)
	s.Tick(empty, true, true, false, "spotify:album:1")
	time.Sleep(20 * time.Millisecond)
	if len(sink.callsOf("play")) != 0 {
		t.Error("cancelled arm fired after reconnect")
	}
}

func TestNavigationPauseAndResume(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{}
	s := newTestSyncer(t, sink, nil)
	playing := state.Snapshot{Playing: true, ContextURI: "spotify:album:1", TrackURI: "spotify:track:t"}

	s.OnNavigate("spotify:album:1", "spotify:album:2", false, playing)
	if len(sink.callsOf("pause")) != 1 {
		t.Fatal("leaving the playing item should pause")
	}
	if !s.Loading() {
		t.Error("navigation pause should read as loading")
	}

	s.OnNavigate("spotify:album:2", "spotify:album:1", false, playing)
	if len(sink.callsOf("resume")) != 1 {
		t.Fatal("returning should resume")
	}

	// No timer left behind for either item.
	now = now.Add(2 * time.Second)
	s.Tick(playing, true, true, false, "spotify:album:1")
	time.Sleep(20 * time.Millisecond)
	if len(sink.callsOf("play")) != 0 {
		t.Errorf("plays = %v, want resume instead of fresh play", sink.callsOf("play"))
	}
}

func TestSyncToExternallyPlayingContext(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{}
	s := newTestSyncer(t, sink, nil)
	snap := state.Snapshot{Playing: true, ContextURI: "spotify:album:phone"}

	if got := s.Tick(snap, true, true, false, "spotify:album:1"); got != "spotify:album:phone" {
		t.Errorf("Tick = %q, want the externally playing context", got)
	}
	if got := s.Tick(snap, true, true, true, "spotify:album:1"); got != "" {
		t.Errorf("Tick while dragging = %q, want no sync", got)
	}
	if got := s.Tick(snap, true, false, false, "spotify:album:1"); got != "" {
		t.Errorf("Tick while unsettled = %q, want no sync", got)
	}
	if got := s.Tick(snap, false, true, false, "spotify:album:1"); got != "" {
		t.Errorf("Tick while disconnected = %q, want no sync", got)
	}
	if got := s.Tick(snap, true, true, false, "spotify:album:phone"); got != "" {
		t.Errorf("Tick with matching selection = %q, want no sync", got)
	}
}

func TestSyncSuppressedAfterTimerFire(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	sink := &fakeSink{started: make(chan string, 4)}
	s := newTestSyncer(t, sink, nil)
	empty := state.Empty()

	s.OnNavigate("spotify:album:0", "spotify:album:1", false, empty)
	now = now.Add(time.Second)
	s.Tick(empty, true, true, false, "spotify:album:1")
	waitChan(t, sink.started, "auto-play")

	// Right after firing, the device reports the fired context. The
	// carousel has moved on; it must not be dragged back.
	snap := state.Snapshot{Playing: true, ContextURI: "spotify:album:1"}
	now = now.Add(time.Second)
	if got := s.Tick(snap, true, true, false, "spotify:album:2"); got != "" {
		t.Errorf("Tick = %q, re-selected the just-fired context", got)
	}

	// Even a different external context waits out the cooldown.
	other := state.Snapshot{Playing: true, ContextURI: "spotify:album:x"}
	if got := s.Tick(other, true, true, false, "spotify:album:2"); got != "" {
		t.Errorf("Tick = %q, synced within cooldown", got)
	}

	now = now.Add(3 * time.Second)
	if got := s.Tick(other, true, true, false, "spotify:album:2"); got != "spotify:album:x" {
		t.Errorf("Tick = %q, want sync after cooldown", got)
	}
}

func TestAutoplayFinishClearsProgress(t *testing.T) {
	noSleep(t)
	now := time.Now()
	clockAt(t, &now)

	var cleared []string
	sink := &fakeSink{}
	s := newTestSyncer(t, sink, &cleared)

	s.OnStatus(state.Snapshot{Playing: true, ContextURI: "spotify:album:a"})
	s.OnStatus(state.Snapshot{Playing: true, ContextURI: "spotify:album:b"})

	if len(cleared) != 1 || cleared[0] != "spotify:album:a" {
		t.Errorf("cleared = %v, want the finished context", cleared)
	}
}

func TestRequestedContextChangeIsNotAFinish(t *testing.T) {
	noSleep(t)
	var cleared []string
	sink := &fakeSink{}
	s := newTestSyncer(t, sink, &cleared)
	done := make(chan struct{}, 1)
	s.requester.onFinished = func() { done <- struct{}{} }

	s.OnStatus(state.Snapshot{Playing: true, ContextURI: "spotify:album:a"})
	s.requester.Request("spotify:album:b", false)
	waitChan(t, done, "request")
	s.OnStatus(state.Snapshot{Playing: true, ContextURI: "spotify:album:b"})

	if len(cleared) != 0 {
		t.Errorf("cleared = %v, requested change must not clear progress", cleared)
	}
}
