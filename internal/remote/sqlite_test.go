package remote

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
)

func testDB(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "notesync-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes`).Scan(&count); err != nil {
		t.Fatalf("notes table missing: %v", err)
	}
}

func TestCreateAndFetch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	db.now = func() time.Time { return time.Unix(1000, 0) }

	rec, err := db.CreateNote(ctx, models.Detail{Content: "hello\nworld", Tags: []string{"a"}})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if rec.ID == "" || rec.Version != 1 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.Detail.CreationDate != 1000 || rec.Detail.ModificationDate != 1000 {
		t.Errorf("dates = %v / %v", rec.Detail.CreationDate, rec.Detail.ModificationDate)
	}

	got, err := db.FetchNote(ctx, rec.ID)
	if err != nil {
		t.Fatalf("FetchNote: %v", err)
	}
	if got.Detail.Content != "hello\nworld" || len(got.Detail.Tags) != 1 || got.Detail.Tags[0] != "a" {
		t.Errorf("fetched = %+v", got)
	}
	if got.Detail.SystemTags == nil {
		t.Error("system tags should decode to an empty list")
	}
}

func TestCreateTakenIDAlreadyExists(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	db.newID = func() string { return "fixedid" }

	first, err := db.CreateNote(ctx, models.Detail{Content: "one"})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	_, err = db.CreateNote(ctx, models.Detail{Content: "two"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
	var roe *apperr.RemoteOperationError
	if !errors.As(err, &roe) || roe.Status != apperr.StatusConflict {
		t.Fatalf("err = %#v, want create conflict", err)
	}

	got, err := db.FetchNote(ctx, "fixedid")
	if err != nil {
		t.Fatal(err)
	}
	if got.Detail.Content != "one" || got.Version != first.Version {
		t.Errorf("existing note overwritten: %+v", got)
	}
}

func TestFetchMissingIsNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.FetchNote(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	var roe *apperr.RemoteOperationError
	if !errors.As(err, &roe) || roe.Status != apperr.StatusNotFound {
		t.Fatalf("expected status 404, got %v", err)
	}
}

func TestUpdateBumpsVersionAndChecksIt(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	rec, _ := db.CreateNote(ctx, models.Detail{Content: "v1"})

	d := rec.Detail
	d.Content = "v2"
	d.ModificationDate = 2000
	v := rec.Version
	upd, err := db.UpdateNote(ctx, d, rec.ID, &v)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if upd.Version != 2 || upd.Detail.Content != "v2" || upd.Detail.ModificationDate != 2000 {
		t.Errorf("updated = %+v", upd)
	}
	if upd.Detail.CreationDate != rec.Detail.CreationDate {
		t.Errorf("creation date changed: %v -> %v", rec.Detail.CreationDate, upd.Detail.CreationDate)
	}

	stale := 1
	_, err = db.UpdateNote(ctx, d, rec.ID, &stale)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale version, got %v", err)
	}
}

func TestUpdateUnknownIDCreates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	rec, err := db.UpdateNote(ctx, models.Detail{Content: "x", ModificationDate: 5}, "fixed-id", nil)
	if err != nil {
		t.Fatalf("UpdateNote: %v", err)
	}
	if rec.ID != "fixed-id" || rec.Version != 1 || rec.Detail.CreationDate != 5 {
		t.Errorf("record = %+v", rec)
	}
}

func TestTrashAndListDeltas(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	clock := 100.0
	db.now = func() time.Time { clock++; return models.Time(clock) }

	a, _ := db.CreateNote(ctx, models.Detail{Content: "a"})
	b, _ := db.CreateNote(ctx, models.Detail{Content: "b"})

	trashed, err := db.TrashNote(ctx, a.ID)
	if err != nil {
		t.Fatalf("TrashNote: %v", err)
	}
	if !trashed.Detail.Deleted || trashed.Version != 2 {
		t.Errorf("trashed = %+v", trashed)
	}

	deltas, err := db.ListDeltas(ctx)
	if err != nil {
		t.Fatalf("ListDeltas: %v", err)
	}
	if len(deltas) != 2 {
		t.Fatalf("expected 2 deltas, got %d", len(deltas))
	}
	byID := map[string]models.Delta{}
	for _, d := range deltas {
		byID[d.ID] = d
	}
	if byID[a.ID].Deleted != 1 || byID[b.ID].Deleted != 0 {
		t.Errorf("deleted flags = %+v", byID)
	}

	if _, err := db.TrashNote(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("trash missing: %v", err)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	rec, _ := db.CreateNote(ctx, models.Detail{Content: "bye"})

	gone, err := db.DeleteNote(ctx, rec.ID)
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if gone.ID != rec.ID || gone.Detail.Content != "bye" {
		t.Errorf("deleted = %+v", gone)
	}
	if _, err := db.FetchNote(ctx, rec.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if _, err := db.DeleteNote(ctx, rec.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}
