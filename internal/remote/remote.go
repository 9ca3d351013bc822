// Package remote defines the note-storage collaborator and ships a
// SQLite-backed implementation of it.
package remote

import (
	"context"

	"github.com/starford/notesync/internal/models"
)

// API is the remote note store. A nil error means status 0; failures are
// reported as *apperr.RemoteOperationError carrying the status and payload.
type API interface {
	// ListDeltas returns the index of every note, deleted ones included.
	ListDeltas(ctx context.Context) ([]models.Delta, error)
	// FetchNote returns the full record of one note.
	FetchNote(ctx context.Context, id string) (models.Record, error)
	// CreateNote stores a new note and assigns its id.
	CreateNote(ctx context.Context, d models.Detail) (models.Record, error)
	// UpdateNote writes d under id. A non-nil version must match the stored
	// version or the call fails with a conflict. Unknown ids are created.
	UpdateNote(ctx context.Context, d models.Detail, id string, version *int) (models.Record, error)
	// TrashNote flags a note deleted.
	TrashNote(ctx context.Context, id string) (models.Record, error)
	// DeleteNote removes a note permanently and returns its last state.
	DeleteNote(ctx context.Context, id string) (models.Record, error)
}
