// Package app is the bubbletea front-end: it owns the carousel, routes key
// input to the playback coordinators, and consumes the status fan-out from
// the connection monitor.
package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cubby/cubby/internal/catalog"
	"github.com/cubby/cubby/internal/config"
	"github.com/cubby/cubby/internal/librespot"
	"github.com/cubby/cubby/internal/playback"
	"github.com/cubby/cubby/internal/state"
	"github.com/cubby/cubby/internal/sysvol"
	"github.com/cubby/cubby/internal/ui"
)

// timeNow is a test seam.
var timeNow = time.Now

const tickEvery = 250 * time.Millisecond

// Catalog is the slice of the storage layer the app needs.
type Catalog interface {
	Items(ctx context.Context) ([]catalog.Item, error)
	Progress(ctx context.Context, contextURI string) (*catalog.Progress, error)
	SaveProgress(ctx context.Context, contextURI, trackURI string, positionMS int64, trackName, trackArtist string) error
	ClearProgress(ctx context.Context, contextURI string) error
}

// StatusUpdate is one successful poll, delivered through the status
// channel into the update loop.
type StatusUpdate struct {
	Snap   state.Snapshot
	Volume *int
}

type Model struct {
	cfg      *config.Config
	theme    ui.Theme
	store    *state.Store
	sink     librespot.CommandSink
	cat      Catalog
	statusCh chan StatusUpdate
	log      *slog.Logger

	carousel  *Carousel
	requester *playback.Requester
	syncer    *playback.Syncer
	arbiter   *playback.VolumeArbiter
	autoPause *playback.AutoPause
	saver     *playback.ProgressSaver

	spin          spinner.Model
	diag          *DiagnosticsState
	width, height int
	showHelp      bool
	showDiag      bool
	errorMsg      string

	pinnedOnce     bool
	lostConnection bool
	lastSave       time.Time
}

func New(cfg *config.Config, store *state.Store, sink librespot.CommandSink, cat Catalog, statusCh chan StatusUpdate, mixer sysvol.Setter, log *slog.Logger) Model {
	if log == nil {
		log = slog.Default()
	}
	theme := ui.GetTheme(cfg.UI.Theme, cfg.UI.NoEmoji)

	m := Model{
		cfg:      cfg,
		theme:    theme,
		store:    store,
		sink:     sink,
		cat:      cat,
		statusCh: statusCh,
		log:      log,
		carousel: NewCarousel(300 * time.Millisecond),
	}

	m.saver = playback.NewProgressSaver(cat.SaveProgress, store.Now, log)
	m.requester = playback.NewRequester(sink, cat.Progress, m.saver.SaveNow,
		cfg.Timing.SettleDelay(), cfg.Timing.SeekDelay(), nil, log)
	m.syncer = playback.NewSyncer(m.requester,
		m.pauseAsync, m.resumeAsync, m.clearProgressAsync,
		cfg.Timing.PlayTimerDelay(), cfg.Timing.SyncCooldown(), cfg.Timing.RecentPlayWindow(), log)
	m.arbiter = playback.NewVolumeArbiter(cfg.Volume.Levels, cfg.Volume.TakeoverThreshold,
		cfg.Timing.EchoWindow(), mixer, m.setRemoteVolumeAsync, log)
	m.autoPause = playback.NewAutoPause(cfg.Timing.AutoPauseTimeout(), cfg.Timing.AutoPauseFade(),
		m.pauseAsync, m.arbiter.SetEffective, m.arbiter.EffectiveLevel, nil, log)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Accent
	m.spin = sp
	m.diag = NewDiagnosticsState()
	return m
}

type itemsMsg struct {
	items []catalog.Item
	err   error
}

type statusMsg StatusUpdate

type tickMsg time.Time

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadItemsCmd(), m.watchStatusCmd(), m.tickCmd(), m.spin.Tick)
}

func (m Model) loadItemsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		items, err := m.cat.Items(ctx)
		return itemsMsg{items: items, err: err}
	}
}

// watchStatusCmd blocks on the status channel so poll results enter the
// update loop as messages. Re-issued after every delivery.
func (m Model) watchStatusCmd() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.statusCh
		if !ok {
			return nil
		}
		return statusMsg(u)
	}
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(tickEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case itemsMsg:
		if msg.err != nil {
			m.errorMsg = "catalog: " + msg.err.Error()
			return m, nil
		}
		m.carousel.SetItems(msg.items)
		return m, nil

	case statusMsg:
		m.applyStatus(StatusUpdate(msg))
		return m, m.watchStatusCmd()

	case tickMsg:
		m.runTick()
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// applyStatus is the per-poll fan-out: volume arbitration, transient item
// detection, autoplay-finish detection, and the auto-pause countdown.
func (m *Model) applyStatus(u StatusUpdate) {
	snap := u.Snap

	if !m.pinnedOnce {
		m.pinnedOnce = true
		m.arbiter.EnsureRemotePinned()
	}
	if m.lostConnection {
		m.lostConnection = false
		m.arbiter.OnReconnect()
	}
	m.arbiter.Observe(u.Volume)

	if snap.Active() && snap.ContextURI != "" {
		if m.carousel.IndexOf(snap.ContextURI) < 0 {
			m.carousel.SetTransient(transientFrom(snap))
		} else if tr := m.carousel.Transient(); tr != nil && tr.URI != snap.ContextURI {
			m.carousel.ClearTransient()
		}
	}

	m.syncer.OnStatus(snap)

	if snap.Playing {
		m.autoPause.OnPlay(snap.ContextURI)
	}
	m.autoPause.Tick(snap.Playing)

	m.syncAndFire(snap)
}

// runTick advances the time-based machinery between polls.
func (m *Model) runTick() {
	snap := m.store.Now()
	connected := m.store.Connected()

	if m.pinnedOnce && !connected {
		m.lostConnection = true
	}

	m.syncAndFire(snap)

	if snap.Playing && timeNow().Sub(m.lastSave) >= m.cfg.Timing.ProgressSaveInterval() {
		m.lastSave = timeNow()
		go m.saver.SaveNow()
	}
}

func (m *Model) syncAndFire(snap state.Snapshot) {
	target := m.syncer.Tick(snap, m.store.Connected(),
		m.carousel.Settled(), false, m.carousel.SelectedURI())
	if target == "" {
		return
	}
	if !m.carousel.SnapTo(target) {
		m.carousel.SetTransient(transientFrom(snap))
		m.carousel.SnapTo(target)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.saver.SaveNow()
		return m, tea.Quit

	case "left", "h":
		m.navigate(-1)
		return m, nil

	case "right", "l":
		m.navigate(1)
		return m, nil

	case " ", "enter":
		m.togglePlayback()
		return m, nil

	case "n":
		m.async("next", m.sink.Next)
		return m, nil

	case "p":
		m.async("prev", m.sink.Prev)
		return m, nil

	case "v":
		m.arbiter.Toggle()
		return m, nil

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+d":
		m.showDiag = !m.showDiag
		return m, nil
	}
	return m, nil
}

func (m *Model) navigate(delta int) {
	from := m.carousel.SelectedURI()
	m.carousel.Move(delta)
	sel := m.carousel.Selected()
	m.syncer.OnNavigate(from, sel.URI, sel.Temp, m.store.Now())
}

func (m *Model) togglePlayback() {
	snap := m.store.Now()
	sel := m.carousel.Selected()
	if sel.URI == "" {
		return
	}

	switch {
	case snap.Playing && snap.ContextURI == sel.URI:
		m.syncer.CancelTimer()
		m.autoPause.OnStop()
		m.async("pause", m.sink.Pause)

	case snap.Paused && snap.ContextURI == sel.URI:
		m.syncer.CancelTimer()
		m.syncer.ClearNavigationPause()
		m.autoPause.RestoreVolumeIfNeeded()
		m.async("resume", m.sink.Resume)

	case sel.Temp:
		// Transient items are never loaded fresh, only resumed.
		m.async("resume", m.sink.Resume)

	default:
		m.syncer.CancelTimer()
		m.autoPause.RestoreVolumeIfNeeded()
		m.requester.Request(sel.URI, false)
	}
}

// Loading reports whether a busy indicator should show.
func (m Model) Loading() bool {
	return m.syncer.Loading()
}

func (m *Model) pauseAsync()  { m.async("pause", m.sink.Pause) }
func (m *Model) resumeAsync() { m.async("resume", m.sink.Resume) }

func (m *Model) setRemoteVolumeAsync(level int) {
	m.async("volume", func(ctx context.Context) error {
		return m.sink.SetVolume(ctx, level)
	})
}

func (m *Model) clearProgressAsync(contextURI string) {
	log := m.log
	cat := m.cat
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cat.ClearProgress(ctx, contextURI); err != nil {
			log.Debug("clear progress failed", slog.String("context", contextURI), slog.Any("err", err))
		}
	}()
}

// async runs a device command on a short-lived worker so the update loop
// never blocks on the network.
func (m *Model) async(name string, f func(context.Context) error) {
	log := m.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f(ctx); err != nil {
			log.Debug("command failed", slog.String("cmd", name), slog.Any("err", err))
		}
	}()
}

func transientFrom(snap state.Snapshot) catalog.Item {
	name := snap.TrackAlbum
	if name == "" {
		name = snap.TrackName
	}
	return catalog.Item{
		URI:    snap.ContextURI,
		Name:   name,
		Kind:   kindFromURI(snap.ContextURI),
		Artist: snap.TrackArtist,
		Image:  snap.TrackCover,
		Temp:   true,
	}
}

func kindFromURI(uri string) string {
	if strings.Contains(uri, ":playlist:") {
		return "playlist"
	}
	return "album"
}
