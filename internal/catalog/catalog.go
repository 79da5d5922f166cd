package catalog

// Item is an album or playlist pinned to the carousel. Temp marks the
// transient entry synthesized for a context playing from outside the
// catalog; transient items never auto-play and are not persisted.
type Item struct {
	ID     string
	URI    string
	Name   string
	Kind   string // "album" or "playlist"
	Artist string
	Image  string
	Temp   bool
}
