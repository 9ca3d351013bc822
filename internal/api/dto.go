package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notesync/internal/noteservice"
	"github.com/starford/notesync/internal/syncops"
)

const maxContentBytes = 10 << 20

// CreateNoteRequest is the request body for creating a note. Content may be
// empty, which creates a blank note.
type CreateNoteRequest struct {
	Content string `json:"content" example:"Groceries\nmilk"`
}

// Validate implements validation.Validatable.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Length(0, maxContentBytes)),
	)
}

// UpdateNoteRequest is the request body for updating a note.
type UpdateNoteRequest struct {
	Content *string `json:"content" example:"Groceries\nmilk, eggs" validate:"required"`
}

// Validate implements validation.Validatable.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.NotNil, validation.Length(0, maxContentBytes)),
	)
}

// ListQuery holds the query parameters of GET /notes.
type ListQuery struct {
	Order  string
	Limit  int
	Offset int
}

// Validate implements validation.Validatable.
func (q ListQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Order, validation.In("", "asc", "desc")),
		validation.Field(&q.Limit, validation.Min(0), validation.Max(1000)),
		validation.Field(&q.Offset, validation.Min(0)),
	)
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// SyncResponse reports the outcome of POST /sync.
type SyncResponse struct {
	Status  string   `json:"status" example:"started"`
	Fetched []string `json:"fetched,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Live    int      `json:"live,omitempty"`
}

func syncResponse(res syncops.SyncResult) SyncResponse {
	out := SyncResponse{Status: "completed", Live: res.Live, Removed: res.Removed}
	for _, n := range res.Fetched {
		out.Fetched = append(out.Fetched, n.ID())
	}
	return out
}
