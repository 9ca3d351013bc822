package notes

import (
	"strings"

	"github.com/starford/notesync/internal/models"
)

// DefaultTitle is used for notes with empty content.
const DefaultTitle = "untitled"

// Note is an identity-mapped note entity. Obtain instances from Store.Upsert;
// all accessors take the owning store's lock.
type Note struct {
	store   *Store
	id      string
	version int
	detail  *models.Detail

	// cached is the content last materialized to disk.
	cached string
}

// ID returns the note's stable identifier.
func (n *Note) ID() string {
	return n.id
}

// Version returns the remote version counter.
func (n *Note) Version() int {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	return n.version
}

// Detail returns a copy of the detail block. The zero Detail is returned
// for a note that has been removed from its store.
func (n *Note) Detail() models.Detail {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	if n.detail == nil {
		return models.Detail{}
	}
	return n.detail.Clone()
}

// Record returns the note in wire form.
func (n *Note) Record() models.Record {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	rec := models.Record{ID: n.id, Version: n.version}
	if n.detail != nil {
		rec.Detail = n.detail.Clone()
	}
	return rec
}

// ModificationDate returns the current index key of the note.
func (n *Note) ModificationDate() float64 {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	if n.detail == nil {
		return 0
	}
	return n.detail.ModificationDate
}

// Live reports whether the note is still held by its store.
func (n *Note) Live() bool {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	cur, ok := n.store.byID[n.id]
	return ok && cur == n
}

// SetDetail replaces the detail block and moves the index entry from the
// old modification date to the new one atomically.
func (n *Note) SetDetail(d models.Detail) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	n.store.setDetailLocked(n, d)
}

// SetModificationDate re-keys the note under ts.
func (n *Note) SetModificationDate(ts float64) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	var d models.Detail
	if n.detail != nil {
		d = *n.detail
	}
	d.ModificationDate = ts
	n.store.setDetailLocked(n, d)
}

// Content returns the last materialized content.
func (n *Note) Content() string {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	return n.cached
}

// SetContent writes through to the detail block only; the note needs a
// flush afterwards if the value differs from the cached content. It is a
// no-op on a removed note.
func (n *Note) SetContent(content string) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	if n.detail == nil {
		return
	}
	n.detail.Content = content
}

// NeedsFlush reports whether the detail content diverged from the cache.
func (n *Note) NeedsFlush() bool {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	return n.cached != n.detailContent()
}

// Flush marks the detail content as materialized.
func (n *Note) Flush() {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	n.cached = n.detailContent()
}

// Title derives the title from the detail content.
func (n *Note) Title() string {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	return TitleOf(n.detailContent())
}

// FlushedTitle derives the title from the cached content, i.e. the title
// the note had when it was last written to disk.
func (n *Note) FlushedTitle() string {
	n.store.mu.RLock()
	defer n.store.mu.RUnlock()
	return TitleOf(n.cached)
}

func (n *Note) detailContent() string {
	if n.detail == nil {
		return ""
	}
	return n.detail.Content
}

// TitleOf returns the first line of content, the whole content when it has
// no newline, or DefaultTitle when it is empty.
func TitleOf(content string) string {
	if i := strings.IndexByte(content, '\n'); i >= 0 {
		return content[:i]
	}
	if content == "" {
		return DefaultTitle
	}
	return content
}
