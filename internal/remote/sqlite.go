package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/notesync/internal/apperr"
	"github.com/starford/notesync/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id                TEXT PRIMARY KEY,
	version           INTEGER NOT NULL DEFAULT 1,
	deleted           INTEGER NOT NULL DEFAULT 0,
	content           TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	system_tags       TEXT NOT NULL DEFAULT '[]',
	share_url         TEXT NOT NULL DEFAULT '',
	publish_url       TEXT NOT NULL DEFAULT '',
	modification_date REAL NOT NULL DEFAULT 0,
	creation_date     REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_notes_modification ON notes(modification_date);
`

// SQLite is an API backed by a SQLite database file.
type SQLite struct {
	conn  *sql.DB
	now   func() time.Time
	newID func() string
}

var _ API = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("remote: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("remote: apply schema: %w", err)
	}
	return &SQLite{conn: conn, now: time.Now, newID: newNoteID}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// ListDeltas implements API.
func (s *SQLite) ListDeltas(ctx context.Context) ([]models.Delta, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, modification_date, deleted FROM notes ORDER BY modification_date`)
	if err != nil {
		return nil, apperr.WrapRemote("list", err)
	}
	defer rows.Close()

	out := []models.Delta{}
	for rows.Next() {
		var d models.Delta
		if err := rows.Scan(&d.ID, &d.Modified, &d.Deleted); err != nil {
			return nil, apperr.WrapRemote("list", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.WrapRemote("list", err)
	}
	return out, nil
}

// FetchNote implements API.
func (s *SQLite) FetchNote(ctx context.Context, id string) (models.Record, error) {
	rec, err := s.get(ctx, s.conn, id)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("fetch", err)
	}
	return rec, nil
}

func newNoteID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateNote implements API. A taken id fails with a create conflict.
func (s *SQLite) CreateNote(ctx context.Context, d models.Detail) (models.Record, error) {
	id := s.newID()
	now := models.Timestamp(s.now())
	if d.CreationDate == 0 {
		d.CreationDate = now
	}
	if d.ModificationDate == 0 {
		d.ModificationDate = now
	}
	rec := models.Record{ID: id, Version: 1, Detail: d}
	if err := s.insert(ctx, s.conn, rec); err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return models.Record{}, apperr.Remote("create", apperr.StatusConflict, "note already exists: "+id)
		}
		return models.Record{}, apperr.WrapRemote("create", err)
	}
	return s.FetchNote(ctx, id)
}

// UpdateNote implements API.
func (s *SQLite) UpdateNote(ctx context.Context, d models.Detail, id string, version *int) (models.Record, error) {
	if id == "" {
		return models.Record{}, apperr.Remote("update", apperr.StatusInternal, "note id is required")
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("update", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	rec := models.Record{ID: id, Version: 1, Detail: d}
	cur, err := s.get(ctx, tx, id)
	switch {
	case err == nil:
		if version != nil && *version != cur.Version {
			return models.Record{}, apperr.Remote("update", apperr.StatusConflict,
				fmt.Sprintf("version mismatch: have %d, got %d", cur.Version, *version))
		}
		rec.Version = cur.Version + 1
		if rec.Detail.CreationDate == 0 {
			rec.Detail.CreationDate = cur.Detail.CreationDate
		}
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return models.Record{}, apperr.WrapRemote("update", err)
	}
	if rec.Detail.ModificationDate == 0 {
		rec.Detail.ModificationDate = models.Timestamp(s.now())
	}
	if rec.Detail.CreationDate == 0 {
		rec.Detail.CreationDate = rec.Detail.ModificationDate
	}

	if err := s.put(ctx, tx, rec); err != nil {
		return models.Record{}, apperr.WrapRemote("update", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Record{}, apperr.WrapRemote("update", fmt.Errorf("commit: %w", err))
	}
	return s.FetchNote(ctx, id)
}

// TrashNote implements API.
func (s *SQLite) TrashNote(ctx context.Context, id string) (models.Record, error) {
	res, err := s.conn.ExecContext(ctx, `
		UPDATE notes
		SET deleted = 1, version = version + 1, modification_date = ?
		WHERE id = ?
	`, models.Timestamp(s.now()), id)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("trash", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Record{}, apperr.Remote("trash", apperr.StatusNotFound, "note not found: "+id)
	}
	return s.FetchNote(ctx, id)
}

// DeleteNote implements API.
func (s *SQLite) DeleteNote(ctx context.Context, id string) (models.Record, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("delete", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	rec, err := s.get(ctx, tx, id)
	if err != nil {
		return models.Record{}, apperr.WrapRemote("delete", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return models.Record{}, apperr.WrapRemote("delete", err)
	}
	if err := tx.Commit(); err != nil {
		return models.Record{}, apperr.WrapRemote("delete", fmt.Errorf("commit: %w", err))
	}
	rec.Detail.Deleted = true
	return rec, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) get(ctx context.Context, q querier, id string) (models.Record, error) {
	var (
		rec       models.Record
		deleted   int
		tags, sys string
	)
	rec.ID = id
	err := q.QueryRowContext(ctx, `
		SELECT version, deleted, content, tags, system_tags, share_url, publish_url,
		       modification_date, creation_date
		FROM notes WHERE id = ?
	`, id).Scan(&rec.Version, &deleted, &rec.Detail.Content, &tags, &sys,
		&rec.Detail.ShareURL, &rec.Detail.PublishURL,
		&rec.Detail.ModificationDate, &rec.Detail.CreationDate)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, apperr.Remote("fetch", apperr.StatusNotFound, "note not found: "+id)
	}
	if err != nil {
		return models.Record{}, err
	}
	rec.Detail.Deleted = deleted != 0
	rec.Detail.Tags = decodeList(tags)
	rec.Detail.SystemTags = decodeList(sys)
	return rec, nil
}

const insertSQL = `
	INSERT INTO notes (id, version, deleted, content, tags, system_tags, share_url, publish_url,
	                   modification_date, creation_date)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const upsertSQL = insertSQL + `
	ON CONFLICT(id) DO UPDATE SET
		version           = excluded.version,
		deleted           = excluded.deleted,
		content           = excluded.content,
		tags              = excluded.tags,
		system_tags       = excluded.system_tags,
		share_url         = excluded.share_url,
		publish_url       = excluded.publish_url,
		modification_date = excluded.modification_date,
		creation_date     = excluded.creation_date`

func (s *SQLite) insert(ctx context.Context, q querier, rec models.Record) error {
	if err := s.write(ctx, q, insertSQL, rec); err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (s *SQLite) put(ctx context.Context, q querier, rec models.Record) error {
	if err := s.write(ctx, q, upsertSQL, rec); err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

func (s *SQLite) write(ctx context.Context, q querier, query string, rec models.Record) error {
	tags, _ := json.Marshal(nonNil(rec.Detail.Tags))
	sys, _ := json.Marshal(nonNil(rec.Detail.SystemTags))
	deleted := 0
	if rec.Detail.Deleted {
		deleted = 1
	}
	_, err := q.ExecContext(ctx, query, rec.ID, rec.Version, deleted, rec.Detail.Content, string(tags), string(sys),
		rec.Detail.ShareURL, rec.Detail.PublishURL, rec.Detail.ModificationDate, rec.Detail.CreationDate)
	return err
}

func decodeList(raw string) []string {
	out := []string{}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
