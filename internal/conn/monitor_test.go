package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cubby/cubby/internal/librespot"
	"github.com/cubby/cubby/internal/state"
)

type scriptedSource struct {
	responses []func() (*librespot.StatusResponse, error)
	calls     int
	reachable bool
}

func (s *scriptedSource) Status(ctx context.Context) (*librespot.StatusResponse, error) {
	if s.calls >= len(s.responses) {
		return nil, errors.New("script exhausted")
	}
	r := s.responses[s.calls]
	s.calls++
	return r()
}

func (s *scriptedSource) Connected(ctx context.Context) bool { return s.reachable }

func ok(uri string, playing bool) func() (*librespot.StatusResponse, error) {
	return func() (*librespot.StatusResponse, error) {
		return &librespot.StatusResponse{
			Paused:     !playing,
			ContextURI: "spotify:album:ctx",
			Track: &librespot.Track{
				URI:      uri,
				Name:     "Song",
				Position: 1000,
				Duration: 200000,
			},
		}, nil
	}
}

func fail() func() (*librespot.StatusResponse, error) {
	return func() (*librespot.StatusResponse, error) {
		return nil, errors.New("connection refused")
	}
}

func newTestMonitor(src *scriptedSource, store *state.Store) *Monitor {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Options{GraceThreshold: 3}, src, store, nil, nil, log)
}

func TestSingleFailureDoesNotDisconnect(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		ok("spotify:track:a", true),
		ok("spotify:track:a", true),
		ok("spotify:track:a", true),
		fail(),
		ok("spotify:track:a", true),
	}}
	store := state.NewStore()
	m := newTestMonitor(src, store)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		m.pollOnce(ctx)
		if i >= 2 && !store.Connected() {
			t.Fatalf("poll %d: disconnected below grace threshold", i)
		}
	}
	if !store.Now().Playing {
		t.Error("snapshot should still be playing after recovery")
	}
}

func TestGraceThresholdFlipsDisconnect(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		ok("spotify:track:a", true),
		fail(), fail(), fail(),
	}}
	store := state.NewStore()
	m := newTestMonitor(src, store)

	ctx := context.Background()
	m.pollOnce(ctx)
	if !store.Connected() {
		t.Fatal("should be connected after a good poll")
	}

	m.pollOnce(ctx)
	m.pollOnce(ctx)
	if !store.Connected() {
		t.Fatal("two failures must not disconnect")
	}

	m.pollOnce(ctx)
	if store.Connected() {
		t.Fatal("three consecutive failures should disconnect")
	}
	if store.Now().Active() {
		t.Error("snapshot should be cleared on disconnect")
	}
}

func TestWakeUpResetsFailureCount(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		ok("spotify:track:a", true),
		fail(), fail(),
		fail(),
	}}
	store := state.NewStore()
	m := newTestMonitor(src, store)

	ctx := context.Background()
	m.pollOnce(ctx)
	m.pollOnce(ctx)
	m.pollOnce(ctx)

	// An event arrived: the device is alive, forget accumulated failures.
	m.WakeUp()

	m.pollOnce(ctx)
	if !store.Connected() {
		t.Fatal("single failure after wakeup must not disconnect")
	}
}

func TestNoPlaybackClearsSnapshot(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		ok("spotify:track:a", true),
		func() (*librespot.StatusResponse, error) { return nil, nil },
	}}
	store := state.NewStore()
	m := newTestMonitor(src, store)

	ctx := context.Background()
	m.pollOnce(ctx)
	m.pollOnce(ctx)

	if !store.Connected() {
		t.Error("a 204 answer still counts as connected")
	}
	if store.Now().Active() {
		t.Errorf("snapshot should be empty, got %+v", store.Now())
	}
}

func TestMalformedPayloadIsNotAFailure(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		ok("spotify:track:a", true),
		func() (*librespot.StatusResponse, error) {
			return nil, fmt.Errorf("%w: unexpected EOF", librespot.ErrMalformed)
		},
	}}
	store := state.NewStore()
	m := newTestMonitor(src, store)

	ctx := context.Background()
	m.pollOnce(ctx)
	m.pollOnce(ctx)

	if !store.Connected() {
		t.Error("a garbled payload still proves the device is up")
	}
	if store.Now().Active() {
		t.Errorf("garbled payload should read as no playback, got %+v", store.Now())
	}
}

func TestMissingContextFilledFromFeed(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		func() (*librespot.StatusResponse, error) {
			return &librespot.StatusResponse{
				Track: &librespot.Track{URI: "spotify:track:a"},
			}, nil
		},
	}}
	store := state.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := New(Options{}, src, store, func() string { return "spotify:album:remembered" }, nil, log)

	m.pollOnce(context.Background())
	if got := store.Now().ContextURI; got != "spotify:album:remembered" {
		t.Errorf("ContextURI = %q, want remembered context", got)
	}
}

func TestOnStatusFiresOncePerSuccess(t *testing.T) {
	src := &scriptedSource{responses: []func() (*librespot.StatusResponse, error){
		ok("spotify:track:a", true),
		fail(),
		ok("spotify:track:b", false),
	}}
	store := state.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var fired []string
	m := New(Options{}, src, store, nil, func(snap state.Snapshot, _ *int) {
		fired = append(fired, snap.TrackURI)
	}, log)

	ctx := context.Background()
	m.pollOnce(ctx)
	m.pollOnce(ctx)
	m.pollOnce(ctx)

	if len(fired) != 2 || fired[0] != "spotify:track:a" || fired[1] != "spotify:track:b" {
		t.Errorf("onStatus calls = %v", fired)
	}
}

func TestIntervalAdaptsToConnection(t *testing.T) {
	store := state.NewStore()
	m := newTestMonitor(&scriptedSource{}, store)

	if got := m.interval(); got != 500*time.Millisecond {
		t.Errorf("disconnected interval = %v, want 500ms", got)
	}
	store.SetConnected(true)
	if got := m.interval(); got != time.Second {
		t.Errorf("connected interval = %v, want 1s", got)
	}
}
