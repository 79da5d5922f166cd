package librespot

import "strings"

// StatusResponse mirrors the device's /status payload. A nil response means
// the device answered but has no active playback.
type StatusResponse struct {
	Stopped    bool   `json:"stopped"`
	Paused     bool   `json:"paused"`
	Buffering  bool   `json:"buffering"`
	Volume     *int   `json:"volume,omitempty"`
	ContextURI string `json:"context_uri"`
	Track      *Track `json:"track"`
}

// Track holds the currently loaded track as reported by the device.
type Track struct {
	URI           string   `json:"uri"`
	Name          string   `json:"name"`
	ArtistNames   []string `json:"artist_names"`
	AlbumName     string   `json:"album_name"`
	AlbumCoverURL string   `json:"album_cover_url"`
	Position      int64    `json:"position"`
	Duration      int64    `json:"duration"`
}

// Artist returns the joined artist display name.
func (t Track) Artist() string {
	return strings.Join(t.ArtistNames, ", ")
}

// Playing reports whether the device is actively playing.
func (s *StatusResponse) Playing() bool {
	if s == nil {
		return false
	}
	return !s.Stopped && !s.Paused
}
