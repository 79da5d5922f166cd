package playback

import (
	"context"
	"log/slog"
	"time"

	"github.com/cubby/cubby/internal/state"
)

// ProgressSaver persists the resume position of whatever is on the device
// right now. Saves are best effort; a failed write is logged and dropped.
type ProgressSaver struct {
	save func(ctx context.Context, contextURI, trackURI string, positionMS int64, trackName, trackArtist string) error
	snap func() state.Snapshot
	log  *slog.Logger
}

func NewProgressSaver(save func(context.Context, string, string, int64, string, string) error, snap func() state.Snapshot, log *slog.Logger) *ProgressSaver {
	if log == nil {
		log = slog.Default()
	}
	return &ProgressSaver{save: save, snap: snap, log: log}
}

// SaveNow writes the current position if there is an active context.
func (p *ProgressSaver) SaveNow() {
	snap := p.snap()
	if !snap.Active() || snap.ContextURI == "" || snap.TrackURI == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := p.save(ctx, snap.ContextURI, snap.TrackURI, snap.PositionMS, snap.TrackName, snap.TrackArtist)
	if err != nil {
		p.log.Debug("progress save failed",
			slog.String("context", snap.ContextURI), slog.Any("err", err))
		return
	}
	p.log.Debug("progress saved",
		slog.String("context", snap.ContextURI),
		slog.String("track", snap.TrackURI),
		slog.Int64("position_ms", snap.PositionMS))
}
