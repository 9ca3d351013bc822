package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/remote"
)

// FakeRemote is an in-memory remote.API. Deltas, when non-nil, overrides the
// listing derived from Notes. Fail maps an id to the error returned by
// FetchNote for it. Block, when non-nil, is received from before every fetch.
type FakeRemote struct {
	mu     sync.Mutex
	Notes  map[string]models.Record
	Deltas []models.Delta
	Fail   map[string]error
	Block  chan struct{}

	Fetches  atomic.Int64
	inflight atomic.Int64
	peak     atomic.Int64
	nextID   int
}

var _ remote.API = (*FakeRemote)(nil)

// NewFakeRemote returns a fake seeded with recs.
func NewFakeRemote(recs ...models.Record) *FakeRemote {
	f := &FakeRemote{Notes: map[string]models.Record{}, Fail: map[string]error{}}
	for _, r := range recs {
		f.Notes[r.ID] = r
	}
	return f
}

// Peak returns the highest number of concurrent FetchNote calls observed.
func (f *FakeRemote) Peak() int64 {
	return f.peak.Load()
}

func (f *FakeRemote) ListDeltas(_ context.Context) ([]models.Delta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Deltas != nil {
		return append([]models.Delta(nil), f.Deltas...), nil
	}
	out := make([]models.Delta, 0, len(f.Notes))
	for id, r := range f.Notes {
		d := models.Delta{ID: id, Modified: r.Detail.ModificationDate}
		if r.Detail.Deleted {
			d.Deleted = 1
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *FakeRemote) FetchNote(ctx context.Context, id string) (models.Record, error) {
	cur := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	f.Fetches.Add(1)
	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return models.Record{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[id]; err != nil {
		return models.Record{}, err
	}
	r, ok := f.Notes[id]
	if !ok {
		return models.Record{}, apperr.Remote("fetch", apperr.StatusNotFound, "note not found: "+id)
	}
	return r, nil
}

func (f *FakeRemote) CreateNote(_ context.Context, d models.Detail) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("fake%d", f.nextID)
	r := models.Record{ID: id, Version: 1, Detail: d.Clone()}
	f.Notes[id] = r
	return r, nil
}

func (f *FakeRemote) UpdateNote(_ context.Context, d models.Detail, id string, version *int) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.Fail[id]; err != nil {
		return models.Record{}, err
	}
	cur, ok := f.Notes[id]
	if ok && version != nil && *version != cur.Version {
		return models.Record{}, apperr.Remote("update", apperr.StatusConflict, "version mismatch")
	}
	r := models.Record{ID: id, Version: cur.Version + 1, Detail: d.Clone()}
	f.Notes[id] = r
	return r, nil
}

func (f *FakeRemote) TrashNote(_ context.Context, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Notes[id]
	if !ok {
		return models.Record{}, apperr.Remote("trash", apperr.StatusNotFound, "note not found: "+id)
	}
	r.Detail.Deleted = true
	r.Version++
	f.Notes[id] = r
	return r, nil
}

func (f *FakeRemote) DeleteNote(_ context.Context, id string) (models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.Notes[id]
	if !ok {
		return models.Record{}, apperr.Remote("delete", apperr.StatusNotFound, "note not found: "+id)
	}
	delete(f.Notes, id)
	return r, nil
}
