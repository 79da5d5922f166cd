package state

import "sync"

// Snapshot is the last full playback report received from the device. It is
// replaced wholesale on every successful poll; fields are never mutated in
// place.
type Snapshot struct {
	Playing     bool
	Paused      bool
	Stopped     bool
	ContextURI  string
	TrackURI    string
	TrackName   string
	TrackArtist string
	TrackAlbum  string
	TrackCover  string
	PositionMS  int64
	DurationMS  int64
}

// Empty returns the snapshot representing "no active playback".
func Empty() Snapshot {
	return Snapshot{Stopped: true}
}

// Active reports whether there is playback to show (playing or paused).
func (s Snapshot) Active() bool {
	return !s.Stopped
}

// Progress returns playback progress in [0, 1]. Zero when the duration is
// unknown.
func (s Snapshot) Progress() float64 {
	if s.DurationMS <= 0 {
		return 0
	}
	p := float64(s.PositionMS) / float64(s.DurationMS)
	if p > 1 {
		return 1
	}
	return p
}

// Store coordinates cross-goroutine access to the snapshot and the
// connection flag. Writers replace the whole value; readers always see a
// fully formed one.
type Store struct {
	mu        sync.RWMutex
	snapshot  Snapshot
	connected bool
}

func NewStore() *Store {
	return &Store{snapshot: Empty()}
}

// Set replaces the stored snapshot.
func (s *Store) Set(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
}

// Now returns a copy of the current snapshot.
func (s *Store) Now() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Store) SetConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = v
}

func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
