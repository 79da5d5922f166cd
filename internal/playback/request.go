// Package playback implements the coordination policies between the local
// UI and the remote player: play request coalescing, carousel/player sync,
// volume ownership, inactivity auto-pause, and resume progress.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cubby/cubby/internal/catalog"
	"github.com/cubby/cubby/internal/librespot"
)

// Test seams.
var (
	timeNow = time.Now
	sleep   = time.Sleep
)

// Requester serializes play-context requests to the device. At most one
// request is in flight; while one runs, later requests overwrite a single
// pending slot so a burst of navigation collapses to the final choice.
type Requester struct {
	sink       librespot.CommandSink
	progress   func(ctx context.Context, contextURI string) (*catalog.Progress, error)
	saveFirst  func()
	settle     time.Duration
	seekDelay  time.Duration
	log        *slog.Logger
	onFinished func()

	mu       sync.Mutex
	inFlight bool
	pending  *playRequest
	lastURI  string
	lastAt   time.Time
}

type playRequest struct {
	uri       string
	fromStart bool
}

// NewRequester builds a Requester. progress looks up the saved resume
// position for a context and may be nil; saveFirst persists the current
// context's position before switching away and may be nil; onFinished
// fires after each request completes and may be nil.
func NewRequester(sink librespot.CommandSink, progress func(context.Context, string) (*catalog.Progress, error), saveFirst func(), settle, seekDelay time.Duration, onFinished func(), log *slog.Logger) *Requester {
	if progress == nil {
		progress = func(context.Context, string) (*catalog.Progress, error) { return nil, nil }
	}
	if saveFirst == nil {
		saveFirst = func() {}
	}
	if onFinished == nil {
		onFinished = func() {}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Requester{
		sink:       sink,
		progress:   progress,
		saveFirst:  saveFirst,
		settle:     settle,
		seekDelay:  seekDelay,
		onFinished: onFinished,
		log:        log,
	}
}

// Request asks the device to start playing the given context, resuming
// from the saved position unless fromStart is set. If a request is already
// running, this one replaces any previously pending one.
func (r *Requester) Request(uri string, fromStart bool) {
	req := playRequest{uri: uri, fromStart: fromStart}
	r.mu.Lock()
	if r.inFlight {
		r.pending = &req
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	go r.execute(req)
}

// Busy reports whether a request is running or queued.
func (r *Requester) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight || r.pending != nil
}

// LastRequested returns the most recently launched context URI and when it
// was launched.
func (r *Requester) LastRequested() (string, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastURI, r.lastAt
}

func (r *Requester) execute(req playRequest) {
	r.saveFirst()

	r.mu.Lock()
	r.lastURI = req.uri
	r.lastAt = timeNow()
	r.mu.Unlock()

	ctx := context.Background()
	var saved *catalog.Progress
	if !req.fromStart {
		var err error
		saved, err = r.progress(ctx, req.uri)
		if err != nil {
			r.log.Debug("progress lookup failed", slog.String("uri", req.uri), slog.Any("err", err))
			saved = nil
		}
	}

	skipTo := ""
	if saved != nil {
		skipTo = saved.TrackURI
	}
	if err := r.sink.Play(ctx, req.uri, skipTo); err != nil {
		r.log.Warn("play request failed", slog.String("uri", req.uri), slog.Any("err", err))
	} else if saved != nil && saved.PositionMS > 0 {
		// The device needs a moment to load the track before it accepts
		// a seek into it.
		sleep(r.seekDelay)
		if err := r.sink.Seek(ctx, saved.PositionMS); err != nil {
			r.log.Debug("resume seek failed", slog.String("uri", req.uri), slog.Any("err", err))
		}
	}

	r.finish()
}

func (r *Requester) finish() {
	// Let the device absorb the previous request, and an even newer one
	// arrive, before draining the pending slot.
	r.mu.Lock()
	pending := r.pending != nil
	r.mu.Unlock()
	if pending {
		sleep(r.settle)
	}

	r.mu.Lock()
	next := r.pending
	r.pending = nil
	if next == nil {
		r.inFlight = false
	}
	r.mu.Unlock()

	if next == nil {
		r.onFinished()
		return
	}
	go r.execute(*next)
}
