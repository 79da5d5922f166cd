package librespot

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = time.Second

// EventFeed listens to the device's websocket event stream. It tracks the
// last known playback context and nudges the app to re-poll when something
// changes; the poll loop remains the source of truth for full state.
type EventFeed struct {
	url         string
	log         *slog.Logger
	onUpdate    func()
	onReconnect func()

	mu           sync.Mutex
	contextURI   string
	conn         *websocket.Conn
	done         chan struct{}
	stopOnce     sync.Once
	wasConnected bool
}

// NewEventFeed builds a feed for the given websocket URL. onUpdate fires on
// every received event, onReconnect after the connection comes back from a
// drop; either may be nil.
func NewEventFeed(url string, onUpdate, onReconnect func(), log *slog.Logger) *EventFeed {
	if log == nil {
		log = slog.Default()
	}
	return &EventFeed{
		url:         url,
		log:         log,
		onUpdate:    onUpdate,
		onReconnect: onReconnect,
		done:        make(chan struct{}),
	}
}

// Start launches the listener goroutine. It returns immediately.
func (f *EventFeed) Start() {
	go f.run()
	f.log.Debug("event feed started", slog.String("url", f.url))
}

// Stop tears down the listener. Safe to call more than once.
func (f *EventFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
		f.mu.Lock()
		if f.conn != nil {
			_ = f.conn.Close()
		}
		f.mu.Unlock()
		f.log.Debug("event feed stopped")
	})
}

// ContextURI returns the last context URI seen on the feed.
func (f *EventFeed) ContextURI() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contextURI
}

func (f *EventFeed) run() {
	for {
		select {
		case <-f.done:
			return
		default:
		}

		if err := f.listen(); err != nil {
			f.log.Debug("event feed connection ended", slog.Any("err", err))
		}

		select {
		case <-f.done:
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *EventFeed) listen() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	cancel()
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.conn = conn
	reconnected := f.wasConnected
	f.wasConnected = true
	f.mu.Unlock()

	if reconnected {
		f.log.Info("event feed reconnected")
		if f.onReconnect != nil {
			f.onReconnect()
		}
	}

	defer func() {
		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleMessage(data)
	}
}

type eventMessage struct {
	Type string `json:"type"`
	Data struct {
		ContextURI string `json:"context_uri"`
	} `json:"data"`
}

func (f *EventFeed) handleMessage(data []byte) {
	var msg eventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		f.log.Debug("event feed: bad payload", slog.Any("err", err))
		return
	}
	if msg.Type == "playing" && msg.Data.ContextURI != "" {
		f.mu.Lock()
		f.contextURI = msg.Data.ContextURI
		f.mu.Unlock()
		f.log.Debug("event feed: context", slog.String("context", msg.Data.ContextURI))
	}
	if f.onUpdate != nil {
		f.onUpdate()
	}
}
