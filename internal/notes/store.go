// Package notes keeps the local note cache: an identity map of Note
// entities plus an index that orders them by modification time.
package notes

import (
	"sync"

	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/rbtree"
)

// Store owns the identity map (id -> *Note) and the modification-time index.
// Every mutation of a note's detail block goes through the store lock so
// index rebalancing never interleaves.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*Note
	index *rbtree.Tree[float64, *Note]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:  make(map[string]*Note),
		index: rbtree.New[float64, *Note](),
	}
}

// Upsert is the only way to construct a Note. If a note with rec.ID exists
// it is refreshed in place and returned; otherwise a new note is created
// whose cached content starts equal to the detail content.
func (s *Store) Upsert(rec models.Record) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[rec.ID]
	if !ok {
		n = &Note{store: s, id: rec.ID, cached: rec.Detail.Content}
		s.byID[rec.ID] = n
	}
	n.version = rec.Version
	s.setDetailLocked(n, rec.Detail)
	return n
}

// Get returns the live note with id.
func (s *Store) Get(id string) (*Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.byID[id]
	return n, ok
}

// Remove drops the note from the identity map and the index. Removing an
// unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return
	}
	s.unindexLocked(n)
	n.detail = nil
	delete(s.byID, id)
}

// FindByModification returns the note indexed at ts.
func (s *Store) FindByModification(ts float64) (*Note, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Find(ts)
}

// Ordered returns indexed notes by ascending modification time.
func (s *Store) Ordered() []*Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Note, 0, s.index.Len())
	for n := range s.index.Values() {
		out = append(out, n)
	}
	return out
}

// Recent returns indexed notes, most recently modified first.
func (s *Store) Recent() []*Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Note, 0, s.index.Len())
	for _, n := range s.index.Backward() {
		out = append(out, n)
	}
	return out
}

// All returns every live note, indexed or not, in no particular order.
func (s *Store) All() []*Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Note, 0, len(s.byID))
	for _, n := range s.byID {
		out = append(out, n)
	}
	return out
}

// Len returns the number of live notes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// IndexLen returns the number of index entries.
func (s *Store) IndexLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Clear forgets every note.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.byID {
		n.detail = nil
	}
	s.byID = make(map[string]*Note)
	s.index = rbtree.New[float64, *Note]()
}

// setDetailLocked swaps the detail block and re-keys the index entry in one
// step under the write lock. Tags are kept as sets.
func (s *Store) setDetailLocked(n *Note, d models.Detail) {
	nd := d.Clone()
	nd.Tags = dedupe(nd.Tags)
	nd.SystemTags = dedupe(nd.SystemTags)
	if n.detail != nil && n.detail.ModificationDate == nd.ModificationDate {
		n.detail = &nd
		return
	}
	s.unindexLocked(n)
	n.detail = &nd
	s.index.Insert(nd.ModificationDate, n)
}

// unindexLocked removes n's entry. Another note may own the same timestamp
// (the index keeps the first writer), so only an entry pointing at n goes.
// A freed key is handed to a note that was shadowed on it, if any; the one
// with the smallest id wins.
func (s *Store) unindexLocked(n *Note) {
	if n.detail == nil {
		return
	}
	ts := n.detail.ModificationDate
	cur, ok := s.index.Find(ts)
	if !ok || cur != n {
		return
	}
	s.index.Remove(ts)

	var next *Note
	for _, other := range s.byID {
		if other == n || other.detail == nil || other.detail.ModificationDate != ts {
			continue
		}
		if next == nil || other.id < next.id {
			next = other
		}
	}
	if next != nil {
		s.index.Insert(ts, next)
	}
}

func dedupe(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := list[:0]
	for _, v := range list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
