package app

import (
	"time"

	"github.com/cubby/cubby/internal/catalog"
)

// Carousel maintains the ordered list of pinned items and the current
// selection. A single transient slot holds an item synthesized for a
// context playing from outside the catalog; it renders at the end of the
// strip and is dropped as soon as it stops being relevant.
type Carousel struct {
	items     []catalog.Item
	selected  int
	transient *catalog.Item
	lastMove  time.Time
	settle    time.Duration
}

func NewCarousel(settle time.Duration) *Carousel {
	return &Carousel{settle: settle}
}

// SetItems replaces the pinned items, keeping the selection on the same
// URI when possible.
func (c *Carousel) SetItems(items []catalog.Item) {
	uri := c.SelectedURI()
	c.items = items
	if idx := c.IndexOf(uri); idx >= 0 {
		c.selected = idx
		return
	}
	if c.selected >= c.Len() {
		c.selected = 0
	}
}

// All returns the visible items: pinned ones plus the transient slot.
func (c *Carousel) All() []catalog.Item {
	if c.transient == nil {
		return c.items
	}
	out := make([]catalog.Item, 0, len(c.items)+1)
	out = append(out, c.items...)
	return append(out, *c.transient)
}

func (c *Carousel) Len() int {
	n := len(c.items)
	if c.transient != nil {
		n++
	}
	return n
}

// Selected returns the item under the cursor; the zero Item when empty.
func (c *Carousel) Selected() catalog.Item {
	all := c.All()
	if c.selected < 0 || c.selected >= len(all) {
		return catalog.Item{}
	}
	return all[c.selected]
}

func (c *Carousel) SelectedURI() string {
	return c.Selected().URI
}

// Move shifts the selection by delta, wrapping at the ends.
func (c *Carousel) Move(delta int) {
	n := c.Len()
	if n == 0 {
		return
	}
	c.selected = ((c.selected+delta)%n + n) % n
	c.lastMove = timeNow()
}

// IndexOf returns the position of uri among the visible items, -1 when
// absent.
func (c *Carousel) IndexOf(uri string) int {
	if uri == "" {
		return -1
	}
	for i, it := range c.All() {
		if it.URI == uri {
			return i
		}
	}
	return -1
}

// SnapTo moves the selection straight to uri. Reports whether it was
// found.
func (c *Carousel) SnapTo(uri string) bool {
	idx := c.IndexOf(uri)
	if idx < 0 {
		return false
	}
	c.selected = idx
	return true
}

// SetTransient installs or replaces the transient slot. Pinned URIs never
// get a transient duplicate.
func (c *Carousel) SetTransient(it catalog.Item) {
	for _, pinned := range c.items {
		if pinned.URI == it.URI {
			return
		}
	}
	it.Temp = true
	onTransient := c.transient != nil && c.selected == len(c.items)
	c.transient = &it
	if onTransient {
		c.selected = len(c.items)
	}
}

// ClearTransient drops the transient slot, pulling the selection back into
// range if it sat there.
func (c *Carousel) ClearTransient() {
	if c.transient == nil {
		return
	}
	c.transient = nil
	if c.selected >= c.Len() && c.Len() > 0 {
		c.selected = c.Len() - 1
	}
}

// Transient returns the current transient item, or nil.
func (c *Carousel) Transient() *catalog.Item {
	return c.transient
}

// Settled reports whether the selection has been still long enough for
// position-dependent actions to trust it.
func (c *Carousel) Settled() bool {
	return timeNow().Sub(c.lastMove) >= c.settle
}
