// Package conn owns the poll loop that keeps the playback snapshot fresh
// and decides when the device counts as disconnected.
package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cubby/cubby/internal/librespot"
	"github.com/cubby/cubby/internal/state"
)

// Options configures a Monitor. Zero fields fall back to working defaults.
type Options struct {
	PollInterval     time.Duration
	FastPollInterval time.Duration
	GraceThreshold   int
	StartupAttempts  int
	StartupDelay     time.Duration
	StartupDelayCap  time.Duration
}

func (o *Options) applyDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = time.Second
	}
	if o.FastPollInterval == 0 {
		o.FastPollInterval = 500 * time.Millisecond
	}
	if o.GraceThreshold == 0 {
		o.GraceThreshold = 3
	}
	if o.StartupAttempts == 0 {
		o.StartupAttempts = 10
	}
	if o.StartupDelay == 0 {
		o.StartupDelay = time.Second
	}
	if o.StartupDelayCap == 0 {
		o.StartupDelayCap = 30 * time.Second
	}
}

// Monitor polls the device and publishes snapshots into the state store.
// A single failed poll is absorbed silently; only GraceThreshold
// consecutive failures flip the connection state. OnStatus fires exactly
// once per successful poll, on the monitor goroutine.
type Monitor struct {
	opts        Options
	source      librespot.StatusSource
	store       *state.Store
	lastContext func() string
	onStatus    func(snap state.Snapshot, volume *int)
	log         *slog.Logger

	mu       sync.Mutex
	failures int

	wake     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New builds a Monitor. lastContext supplies a fallback context URI when
// the device omits one (the event feed remembers it); it may be nil.
// onStatus may be nil.
func New(opts Options, source librespot.StatusSource, store *state.Store, lastContext func() string, onStatus func(state.Snapshot, *int), log *slog.Logger) *Monitor {
	opts.applyDefaults()
	if lastContext == nil {
		lastContext = func() string { return "" }
	}
	if onStatus == nil {
		onStatus = func(state.Snapshot, *int) {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		opts:        opts,
		source:      source,
		store:       store,
		lastContext: lastContext,
		onStatus:    onStatus,
		log:         log,
		wake:        make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// Start launches the poll loop.
func (m *Monitor) Start() {
	go m.run()
}

// Stop terminates the poll loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.done) })
}

// WakeUp optimistically resets the failure count and forces an immediate
// poll. Called when an event arrives, which proves the device is alive.
func (m *Monitor) WakeUp() {
	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Monitor) run() {
	ctx := context.Background()
	m.waitUntilUp(ctx)

	for {
		m.pollOnce(ctx)

		timer := time.NewTimer(m.interval())
		select {
		case <-m.done:
			timer.Stop()
			return
		case <-m.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// waitUntilUp probes the device with exponential backoff before entering
// the steady poll loop. Giving up is fine; the poll loop keeps trying.
func (m *Monitor) waitUntilUp(ctx context.Context) {
	delay := m.opts.StartupDelay
	for attempt := 1; attempt <= m.opts.StartupAttempts; attempt++ {
		if m.source.Connected(ctx) {
			m.log.Info("device reachable", slog.Int("attempt", attempt))
			return
		}
		m.log.Debug("device not reachable yet",
			slog.Int("attempt", attempt), slog.Duration("retry_in", delay))

		timer := time.NewTimer(delay)
		select {
		case <-m.done:
			timer.Stop()
			return
		case <-timer.C:
		}
		delay *= 2
		if delay > m.opts.StartupDelayCap {
			delay = m.opts.StartupDelayCap
		}
	}
	m.log.Warn("device unreachable after startup attempts",
		slog.Int("attempts", m.opts.StartupAttempts))
}

func (m *Monitor) pollOnce(ctx context.Context) {
	resp, err := m.source.Status(ctx)
	if err != nil {
		// A garbled answer still proves the device is up.
		if errors.Is(err, librespot.ErrMalformed) {
			m.log.Debug("malformed status treated as no playback", slog.Any("err", err))
			resp = nil
		} else {
			m.recordFailure(err)
			return
		}
	}

	m.mu.Lock()
	m.failures = 0
	m.mu.Unlock()

	snap := m.snapshotFrom(resp)
	m.store.Set(snap)
	m.store.SetConnected(true)

	var vol *int
	if resp != nil {
		vol = resp.Volume
	}
	m.onStatus(snap, vol)
}

func (m *Monitor) recordFailure(err error) {
	m.mu.Lock()
	m.failures++
	failures := m.failures
	m.mu.Unlock()

	m.log.Debug("status poll failed",
		slog.Int("consecutive", failures), slog.Any("err", err))

	if failures >= m.opts.GraceThreshold && m.store.Connected() {
		m.log.Warn("device disconnected", slog.Int("failures", failures))
		m.store.SetConnected(false)
		m.store.Set(state.Empty())
	}
}

// snapshotFrom converts a device report into a snapshot, filling a missing
// context URI from the event feed's memory.
func (m *Monitor) snapshotFrom(resp *librespot.StatusResponse) state.Snapshot {
	if resp == nil || resp.Track == nil {
		return state.Empty()
	}
	snap := state.Snapshot{
		Playing:     resp.Playing(),
		Paused:      resp.Paused,
		Stopped:     resp.Stopped,
		ContextURI:  resp.ContextURI,
		TrackURI:    resp.Track.URI,
		TrackName:   resp.Track.Name,
		TrackArtist: resp.Track.Artist(),
		TrackAlbum:  resp.Track.AlbumName,
		TrackCover:  resp.Track.AlbumCoverURL,
		PositionMS:  resp.Track.Position,
		DurationMS:  resp.Track.Duration,
	}
	if snap.ContextURI == "" {
		snap.ContextURI = m.lastContext()
	}
	return snap
}

// interval picks the poll cadence: faster while disconnected so recovery
// is noticed quickly.
func (m *Monitor) interval() time.Duration {
	if !m.store.Connected() {
		return m.opts.FastPollInterval
	}
	return m.opts.PollInterval
}
