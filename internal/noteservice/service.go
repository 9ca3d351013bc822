// Package noteservice coordinates the note store, the operation scheduler
// and the workspace files for every front end.
package noteservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/notefiles"
	"github.com/starford/notesync/internal/notes"
	"github.com/starford/notesync/internal/operation"
	"github.com/starford/notesync/internal/syncops"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID         string    `json:"id"`
	Version    int       `json:"version"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	SystemTags []string  `json:"system_tags"`
	Deleted    bool      `json:"deleted"`
	ShareURL   string    `json:"share_url,omitempty"`
	PublishURL string    `json:"publish_url,omitempty"`
	NeedsFlush bool      `json:"needs_flush"`
	ModifiedAt time.Time `json:"modified_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Filename   string    `json:"filename"`
	Tags       []string  `json:"tags"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Status describes the scheduler and the store.
type Status struct {
	Active  bool   `json:"active"`
	Current string `json:"current,omitempty"`
	Pending int    `json:"pending"`
	Text    string `json:"text"`
	Notes   int    `json:"notes"`
}

// Publisher receives note change notifications. kind is one of "created",
// "updated", "deleted".
type Publisher interface {
	PublishNoteEvent(kind, id string)
}

// Service is the single entry point used by the HTTP API, the MCP server
// and the file watcher.
type Service struct {
	ops    *syncops.Ops
	sched  *operation.Scheduler
	files  *notefiles.Files
	pub    Publisher
	logger *slog.Logger
}

// New creates a service. pub may be nil.
func New(ops *syncops.Ops, sched *operation.Scheduler, files *notefiles.Files, pub Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ops: ops, sched: sched, files: files, pub: pub, logger: logger}
}

// ListNotes returns live notes ordered by modification time, most recent
// first unless order is "asc", and the total before pagination.
func (s *Service) ListNotes(_ context.Context, order string, limit, offset int) ([]NoteListItem, int, error) {
	ordered := s.ops.Store().Recent()
	if order == "asc" {
		ordered = s.ops.Store().Ordered()
	}

	items := make([]NoteListItem, 0, len(ordered))
	for _, n := range ordered {
		d := n.Detail()
		if d.Deleted {
			continue
		}
		items = append(items, NoteListItem{
			ID:         n.ID(),
			Title:      n.Title(),
			Filename:   s.files.Filename(n),
			Tags:       nonNilSlice(d.Tags),
			ModifiedAt: models.Time(d.ModificationDate),
		})
	}
	total := len(items)

	if offset > 0 {
		if offset >= len(items) {
			return []NoteListItem{}, total, nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items, total, nil
}

// GetNote returns the tracked note id.
func (s *Service) GetNote(_ context.Context, id string) (*NoteDetail, error) {
	n, ok := s.ops.Store().Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return s.detail(n), nil
}

// OpenNote materializes the note into the workspace.
func (s *Service) OpenNote(_ context.Context, id string) (*NoteDetail, error) {
	n, ok := s.ops.Store().Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if _, err := s.files.Open(n); err != nil {
		return nil, err
	}
	return s.detail(n), nil
}

// CreateNote creates a note remotely, waits for it and materializes it.
func (s *Service) CreateNote(ctx context.Context, content string) (*NoteDetail, error) {
	n, err := submit(ctx, s, s.ops.Create(content), func(n *notes.Note) error {
		if _, err := s.files.Open(n); err != nil {
			return err
		}
		s.publish("created", n.ID())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.detail(n), nil
}

// UpdateNote pushes new content for id and waits for the remote to accept it.
func (s *Service) UpdateNote(ctx context.Context, id, content string) (*NoteDetail, error) {
	n, ok := s.ops.Store().Get(id)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	n, err := submit(ctx, s, s.ops.Update(n, content), s.afterUpdate)
	if err != nil {
		return nil, err
	}
	return s.detail(n), nil
}

// TrashNote moves id to the trash and removes its file.
func (s *Service) TrashNote(ctx context.Context, id string) error {
	n, ok := s.ops.Store().Get(id)
	if !ok {
		return apperr.ErrNotFound
	}
	_, err := submit(ctx, s, s.ops.Trash(n), func(models.Record) error {
		if err := s.files.Close(n); err != nil {
			s.logger.Warn("noteservice: close file", slog.String("id", id), slog.String("error", err.Error()))
		}
		s.publish("deleted", id)
		return nil
	})
	return err
}

// RestoreNote takes id out of the trash and materializes it again.
func (s *Service) RestoreNote(ctx context.Context, id string) (*NoteDetail, error) {
	n, err := submit(ctx, s, s.ops.Restore(id), func(n *notes.Note) error {
		if _, err := s.files.Open(n); err != nil {
			return err
		}
		s.publish("created", n.ID())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.detail(n), nil
}

// DeleteNote deletes id permanently.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	tracked, wasTracked := s.ops.Store().Get(id)
	_, err := submit(ctx, s, s.ops.Delete(id), func(models.Record) error {
		if wasTracked {
			if err := s.files.Close(tracked); err != nil {
				s.logger.Warn("noteservice: close file", slog.String("id", id), slog.String("error", err.Error()))
			}
		}
		s.publish("deleted", id)
		return nil
	})
	return err
}

// Sync enqueues a sync unless the scheduler is busy. It reports whether a
// sync was enqueued.
func (s *Service) Sync() bool {
	if s.sched.Active() {
		s.logger.Debug("noteservice: sync omitted, scheduler active")
		return false
	}
	s.sched.Enqueue(s.ops.Sync().OnSuccess(func(res syncops.SyncResult) {
		_ = s.afterSync(res)
	}))
	return true
}

// SyncNow enqueues a sync and waits for it.
func (s *Service) SyncNow(ctx context.Context) (syncops.SyncResult, error) {
	return submit(ctx, s, s.ops.Sync(), s.afterSync)
}

// SyncEvery runs Sync every interval until ctx is cancelled.
func (s *Service) SyncEvery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sync()
		}
	}
}

// SaveEdit is the watcher callback: it enqueues an update without waiting.
func (s *Service) SaveEdit(n *notes.Note, content string) {
	s.sched.Enqueue(s.ops.Update(n, content).
		OnSuccess(func(n *notes.Note) { _ = s.afterUpdate(n) }).
		OnFailure(func(err error) {
			s.logger.Error("noteservice: save failed", slog.String("id", n.ID()), slog.String("error", err.Error()))
		}))
}

// Prune removes workspace files of notes that are no longer tracked.
func (s *Service) Prune() ([]string, error) {
	return s.files.Prune()
}

// Status returns the scheduler and store state.
func (s *Service) Status() Status {
	return Status{
		Active:  s.sched.Active(),
		Current: s.sched.Current(),
		Pending: s.sched.Pending(),
		Text:    s.sched.Status(),
		Notes:   s.ops.Store().Len(),
	}
}

func (s *Service) afterUpdate(n *notes.Note) error {
	if _, err := s.files.Refresh(n); err != nil {
		return err
	}
	s.publish("updated", n.ID())
	return nil
}

func (s *Service) afterSync(res syncops.SyncResult) error {
	for _, n := range res.Fetched {
		if !n.NeedsFlush() {
			s.publish("created", n.ID())
			continue
		}
		if _, err := s.files.Refresh(n); err != nil {
			s.logger.Warn("noteservice: refresh after sync", slog.String("id", n.ID()), slog.String("error", err.Error()))
			continue
		}
		s.publish("updated", n.ID())
	}
	for _, id := range res.Removed {
		s.publish("deleted", id)
	}
	if len(res.Removed) > 0 {
		if _, err := s.files.Prune(); err != nil {
			s.logger.Warn("noteservice: prune after sync", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Service) publish(kind, id string) {
	if s.pub != nil {
		s.pub.PublishNoteEvent(kind, id)
	}
}

func (s *Service) detail(n *notes.Note) *NoteDetail {
	d := n.Detail()
	return &NoteDetail{
		ID:         n.ID(),
		Version:    n.Version(),
		Title:      n.Title(),
		Filename:   s.files.Filename(n),
		Content:    d.Content,
		Tags:       nonNilSlice(d.Tags),
		SystemTags: nonNilSlice(d.SystemTags),
		Deleted:    d.Deleted,
		ShareURL:   d.ShareURL,
		PublishURL: d.PublishURL,
		NeedsFlush: n.NeedsFlush(),
		ModifiedAt: models.Time(d.ModificationDate),
		CreatedAt:  models.Time(d.CreationDate),
	}
}

// submit enqueues op and waits for its callback. then runs on the scheduler
// poll goroutine before the caller is released.
func submit[T any](ctx context.Context, s *Service, op *operation.Operation[T], then func(T) error) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)
	op.OnSuccess(func(v T) {
		var err error
		if then != nil {
			err = then(v)
		}
		done <- outcome{v: v, err: err}
	}).OnFailure(func(err error) {
		done <- outcome{err: err}
	})
	s.sched.Enqueue(op)

	select {
	case out := <-done:
		return out.v, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
