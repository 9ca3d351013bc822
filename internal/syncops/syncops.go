// Package syncops builds the operations that move notes between the remote
// store and the local note cache.
package syncops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/notes"
	"github.com/starford/notesync/internal/operation"
	"github.com/starford/notesync/internal/remote"
)

// DefaultConcurrency is the fan-out limit used when none is configured.
const DefaultConcurrency = 4

const doneText = "notesync: done"

// Ops creates operations bound to one remote and one store.
type Ops struct {
	api    remote.API
	client *notes.Client
	limit  int
	now    func() time.Time
	logger *slog.Logger
}

// New binds api to store. limit bounds concurrent fetches during downloads.
func New(api remote.API, store *notes.Store, limit int, logger *slog.Logger) *Ops {
	if limit < 1 {
		limit = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ops{
		api:    api,
		client: notes.NewClient(api, store),
		limit:  limit,
		now:    time.Now,
		logger: logger,
	}
}

// Store returns the note store the operations mutate.
func (o *Ops) Store() *notes.Store {
	return o.client.Store()
}

// ListDeltas lists the remote index without deleted entries.
func (o *Ops) ListDeltas() *operation.Operation[[]models.Delta] {
	return operation.New("list deltas", func(ctx context.Context) ([]models.Delta, error) {
		return o.liveDeltas(ctx)
	}).WithStatus("notesync: downloading note list", doneText).WithLogger(o.logger)
}

// DownloadContents fetches ids with bounded concurrency. The store is only
// updated when every fetch succeeded; results follow the order of ids.
func (o *Ops) DownloadContents(ids []string) *operation.Operation[[]*notes.Note] {
	return operation.New("download contents", func(ctx context.Context) ([]*notes.Note, error) {
		recs, err := o.fetchAll(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := make([]*notes.Note, len(recs))
		for i, rec := range recs {
			out[i] = o.Store().Upsert(rec)
		}
		return out, nil
	}).WithStatus("notesync: downloading contents", doneText).WithLogger(o.logger)
}

// SyncResult summarizes one sync pass.
type SyncResult struct {
	// Fetched are the notes whose content was downloaded, in delta order.
	Fetched []*notes.Note
	// Removed are ids dropped locally because the remote no longer lists them.
	Removed []string
	// Live is the number of live notes the remote reported.
	Live int
}

// Sync reconciles the store with the remote index. Notes that are unknown
// locally or modified remotely after the local copy are downloaded; local
// notes missing from the live listing are dropped. It runs ListDeltas and
// DownloadContents as sub-operations on its own context.
func (o *Ops) Sync() *operation.Operation[SyncResult] {
	return operation.New("sync", func(ctx context.Context) (SyncResult, error) {
		deltas, err := await(ctx, o.ListDeltas())
		if err != nil {
			return SyncResult{}, err
		}

		store := o.Store()
		live := make(map[string]struct{}, len(deltas))
		var ids []string
		for _, d := range deltas {
			live[d.ID] = struct{}{}
			n, ok := store.Get(d.ID)
			if !ok || d.Modified > n.ModificationDate() {
				ids = append(ids, d.ID)
			}
		}

		fetched, err := await(ctx, o.DownloadContents(ids))
		if err != nil {
			return SyncResult{}, err
		}

		res := SyncResult{Live: len(deltas), Fetched: fetched}
		for _, n := range store.All() {
			if _, ok := live[n.ID()]; !ok {
				store.Remove(n.ID())
				res.Removed = append(res.Removed, n.ID())
			}
		}

		o.logger.Info("sync: completed",
			slog.Int("live", res.Live),
			slog.Int("fetched", len(res.Fetched)),
			slog.Int("removed", len(res.Removed)))
		return res, nil
	}).WithStatus("notesync: syncing", doneText).WithLogger(o.logger)
}

// await runs op to completion on ctx and unwraps its result.
func await[T any](ctx context.Context, op *operation.Operation[T]) (T, error) {
	op.Start(ctx)
	r := op.Wait()
	return r.Value, r.Err
}

// Create creates a note holding content.
func (o *Ops) Create(content string) *operation.Operation[*notes.Note] {
	return operation.New("create note", func(ctx context.Context) (*notes.Note, error) {
		d := models.NewDetail(content)
		ts := models.Timestamp(o.now())
		d.CreationDate, d.ModificationDate = ts, ts
		return o.client.Create(ctx, d)
	}).WithStatus("notesync: creating note", doneText).WithLogger(o.logger)
}

// Update pushes content as the new content of n, stamped with the current
// time. n is refreshed from the remote response on success and left as is
// on failure.
func (o *Ops) Update(n *notes.Note, content string) *operation.Operation[*notes.Note] {
	return operation.New("update note", func(ctx context.Context) (*notes.Note, error) {
		if !n.Live() {
			return nil, apperr.Invariantf("syncops: update %s: note is no longer tracked", n.ID())
		}
		d := n.Detail()
		d.Content = content
		d.ModificationDate = models.Timestamp(o.now())
		return o.client.Update(ctx, n.ID(), d, nil)
	}).WithStatus("notesync: updating note", doneText).WithLogger(o.logger)
}

// Trash moves n to the remote trash and drops it locally.
func (o *Ops) Trash(n *notes.Note) *operation.Operation[models.Record] {
	return operation.New("trash note", func(ctx context.Context) (models.Record, error) {
		return o.client.Trash(ctx, n)
	}).WithStatus("notesync: deleting note", doneText).WithLogger(o.logger)
}

// Restore takes id out of the trash and tracks it again.
func (o *Ops) Restore(id string) *operation.Operation[*notes.Note] {
	return operation.New("restore note", func(ctx context.Context) (*notes.Note, error) {
		rec, err := o.client.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		return o.client.Restore(ctx, rec)
	}).WithStatus("notesync: restoring note", doneText).WithLogger(o.logger)
}

// Delete removes id from the remote permanently.
func (o *Ops) Delete(id string) *operation.Operation[models.Record] {
	return operation.New("delete note", func(ctx context.Context) (models.Record, error) {
		return o.client.Delete(ctx, id)
	}).WithStatus("notesync: deleting note permanently", doneText).WithLogger(o.logger)
}

func (o *Ops) liveDeltas(ctx context.Context) ([]models.Delta, error) {
	all, err := o.api.ListDeltas(ctx)
	if err != nil {
		return nil, fmt.Errorf("syncops: list deltas: %w", apperr.WrapRemote("list", err))
	}
	live := make([]models.Delta, 0, len(all))
	for _, d := range all {
		if d.Deleted == 0 {
			live = append(live, d)
		}
	}
	return live, nil
}

func (o *Ops) fetchAll(ctx context.Context, ids []string) ([]models.Record, error) {
	recs, err := operation.FanOut(ctx, ids, o.limit, o.client.Fetch)
	if err != nil {
		return nil, fmt.Errorf("syncops: download contents: %w", err)
	}
	return recs, nil
}
