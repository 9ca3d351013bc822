package notes

import (
	"context"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
	"github.com/starford/notesync/internal/remote"
)

// Client performs the lifecycle calls of a note against the remote API and
// folds each returned record back into the store.
//
// A failed call returns a *apperr.RemoteOperationError and leaves the store
// untouched.
type Client struct {
	api   remote.API
	store *Store
}

// NewClient binds api to store.
func NewClient(api remote.API, store *Store) *Client {
	return &Client{api: api, store: store}
}

// Store returns the store the client folds results into.
func (c *Client) Store() *Store {
	return c.store
}

// Fetch returns the remote record for id without touching the store.
func (c *Client) Fetch(ctx context.Context, id string) (models.Record, error) {
	if id == "" {
		return models.Record{}, apperr.Invariantf("fetch: empty note id")
	}
	rec, err := c.api.FetchNote(ctx, id)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("fetch", err)
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.ID != id {
		return models.Record{}, apperr.Invariantf("fetch %s: remote returned note %s", id, rec.ID)
	}
	return rec, nil
}

// Retrieve fetches id and upserts it.
func (c *Client) Retrieve(ctx context.Context, id string) (*Note, error) {
	rec, err := c.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.store.Upsert(rec), nil
}

// Create creates a note remotely from d and stores the returned record.
func (c *Client) Create(ctx context.Context, d models.Detail) (*Note, error) {
	rec, err := c.api.CreateNote(ctx, d)
	if err != nil {
		return nil, apperr.WrapRemote("create", err)
	}
	if rec.ID == "" {
		return nil, apperr.Invariantf("create: remote returned no note id")
	}
	return c.store.Upsert(rec), nil
}

// Modify pushes the note's current detail block. When version is non-nil
// the remote rejects the write if its version differs.
func (c *Client) Modify(ctx context.Context, n *Note, version *int) (*Note, error) {
	return c.Update(ctx, n.ID(), n.Detail(), version)
}

// Update pushes d as the detail block of id. The store only changes once
// the remote accepted the write.
func (c *Client) Update(ctx context.Context, id string, d models.Detail, version *int) (*Note, error) {
	if id == "" {
		return nil, apperr.Invariantf("update: empty note id")
	}
	rec, err := c.api.UpdateNote(ctx, d, id, version)
	if err != nil {
		return nil, apperr.WrapRemote("update", err)
	}
	return c.fold(id, rec)
}

// Trash moves the note to the remote trash and forgets it locally.
func (c *Client) Trash(ctx context.Context, n *Note) (models.Record, error) {
	rec, err := c.api.TrashNote(ctx, n.ID())
	if err != nil {
		return models.Record{}, apperr.WrapRemote("trash", err)
	}
	c.store.Remove(n.ID())
	return rec, nil
}

// Restore clears the deleted flag of a trashed note and stores the result.
// Trashed notes are not held by the store, so the caller passes the last
// known record (as returned by Trash or the remote).
func (c *Client) Restore(ctx context.Context, rec models.Record) (*Note, error) {
	if rec.ID == "" {
		return nil, apperr.Invariantf("restore: empty note id")
	}
	d := rec.Detail.Clone()
	d.Deleted = false
	out, err := c.api.UpdateNote(ctx, d, rec.ID, nil)
	if err != nil {
		return nil, apperr.WrapRemote("restore", err)
	}
	return c.fold(rec.ID, out)
}

// Delete permanently deletes the note and forgets it locally.
func (c *Client) Delete(ctx context.Context, id string) (models.Record, error) {
	rec, err := c.api.DeleteNote(ctx, id)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("delete", err)
	}
	c.store.Remove(id)
	return rec, nil
}

func (c *Client) fold(id string, rec models.Record) (*Note, error) {
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.ID != id {
		return nil, apperr.Invariantf("update %s: remote returned note %s", id, rec.ID)
	}
	return c.store.Upsert(rec), nil
}
