package clipboard

import (
	"sync"

	"github.com/goflowspace/goflow/pkg/domain"
)

// Clipboard holds the last copied or cut fragment.
// Content is stored with original ids; every paste clones it again.
type Clipboard struct {
	mu      sync.Mutex
	content *Fragment
	fromCut bool
}

// New creates an empty clipboard.
func New() *Clipboard {
	return &Clipboard{}
}

// Copy replaces the content with f.
func (c *Clipboard) Copy(f *Fragment) {
	c.set(f, false)
}

// Cut replaces the content with f and marks it as coming from a cut.
func (c *Clipboard) Cut(f *Fragment) {
	c.set(f, true)
}

func (c *Clipboard) set(f *Fragment, cut bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = f.Clone()
	c.fromCut = cut
}

// IsEmpty reports whether there is nothing to paste.
func (c *Clipboard) IsEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content.IsEmpty()
}

// IsCut reports whether the content still carries the cut marker.
func (c *Clipboard) IsCut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fromCut
}

// Peek returns a copy of the content and the mode a paste should clone it with.
func (c *Clipboard) Peek() (*Fragment, Mode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.content.IsEmpty() {
		return nil, ModeCopy, domain.ErrEmptyClipboard
	}
	mode := ModeCopy
	if c.fromCut {
		mode = ModeCut
	}
	return c.content.Clone(), mode, nil
}

// MarkPasted clears the cut marker once cut content has been pasted;
// later pastes of the same content behave like copies.
func (c *Clipboard) MarkPasted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fromCut = false
}

// Clear empties the clipboard.
func (c *Clipboard) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = nil
	c.fromCut = false
}
