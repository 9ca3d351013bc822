// Package notefiles materializes notes as editable files in the workspace
// and watches those files for saves.
package notefiles

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/starford/notesync/internal/notes"
	"github.com/starford/notesync/internal/storage"
)

// Files maps notes to workspace files. The file of a note is named after its
// flushed title, so a title edit renames the file on the next Refresh.
type Files struct {
	fs     storage.Provider
	notes  *notes.Store
	rules  notes.Rules
	logger *slog.Logger
}

// NewFiles creates a materializer over fs for the notes in store.
func NewFiles(fs storage.Provider, store *notes.Store, rules notes.Rules, logger *slog.Logger) *Files {
	if logger == nil {
		logger = slog.Default()
	}
	return &Files{fs: fs, notes: store, rules: rules, logger: logger}
}

// Root returns the workspace directory.
func (f *Files) Root() string {
	return f.fs.Root()
}

// Filename is the name n gets once its current content is flushed.
func (f *Files) Filename(n *notes.Note) string {
	return notes.Filename(n.ID(), n.Title(), f.rules)
}

// flushedName is the name of the file as last written.
func (f *Files) flushedName(n *notes.Note) string {
	return notes.Filename(n.ID(), n.FlushedTitle(), f.rules)
}

// Open writes the note's content to its file and flushes it. It returns the
// file name.
func (f *Files) Open(n *notes.Note) (string, error) {
	old := f.flushedName(n)
	name := f.Filename(n)
	if err := f.fs.Write(name, []byte(n.Detail().Content)); err != nil {
		return "", fmt.Errorf("notefiles: open %s: %w", n.ID(), err)
	}
	if old != name {
		if err := f.fs.Delete(old); err != nil {
			f.logger.Warn("notefiles: remove stale file", slog.String("file", old), slog.String("error", err.Error()))
		}
	}
	n.Flush()
	return name, nil
}

// Refresh rewrites the file of a note whose content diverged from what was
// last materialized, renaming it first when the title changed. Notes that
// need no flush are left alone.
func (f *Files) Refresh(n *notes.Note) (string, error) {
	if !n.NeedsFlush() {
		return f.flushedName(n), nil
	}
	old := f.flushedName(n)
	name := f.Filename(n)
	if old != name {
		if err := f.fs.Move(old, name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("notefiles: rename %s: %w", n.ID(), err)
		}
	}
	if err := f.fs.Write(name, []byte(n.Detail().Content)); err != nil {
		return "", fmt.Errorf("notefiles: refresh %s: %w", n.ID(), err)
	}
	n.Flush()
	f.logger.Debug("notefiles: refreshed", slog.String("id", n.ID()), slog.String("file", name))
	return name, nil
}

// Close removes the file of n. It works on notes already dropped from the
// store, which still remember their flushed title.
func (f *Files) Close(n *notes.Note) error {
	if err := f.fs.Delete(f.flushedName(n)); err != nil {
		return fmt.Errorf("notefiles: close %s: %w", n.ID(), err)
	}
	return nil
}

// NoteForFile finds the live note materialized as name: an exact file name
// match first, then the id embedded in the name.
func (f *Files) NoteForFile(name string) (*notes.Note, bool) {
	for _, n := range f.notes.All() {
		if f.flushedName(n) == name {
			return n, true
		}
	}
	id, ok := notes.IDFromFilename(name)
	if !ok {
		return nil, false
	}
	return f.notes.Get(id)
}

// NoteForPath is NoteForFile for an absolute path. Paths outside the
// workspace never map to a note.
func (f *Files) NoteForPath(abs string) (*notes.Note, bool) {
	name, ok := f.fs.Rel(abs)
	if !ok {
		return nil, false
	}
	return f.NoteForFile(name)
}

// Read returns the current content of a workspace file.
func (f *Files) Read(name string) (string, error) {
	data, err := f.fs.Read(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Prune deletes workspace files that belong to no live note and returns
// their names.
func (f *Files) Prune() ([]string, error) {
	metas, err := f.fs.List()
	if err != nil {
		return nil, fmt.Errorf("notefiles: prune: %w", err)
	}
	var removed []string
	for _, m := range metas {
		if _, ok := f.NoteForFile(m.Name); ok {
			continue
		}
		if err := f.fs.Delete(m.Name); err != nil {
			f.logger.Warn("notefiles: prune failed", slog.String("file", m.Name), slog.String("error", err.Error()))
			continue
		}
		removed = append(removed, m.Name)
	}
	if len(removed) > 0 {
		f.logger.Info("notefiles: pruned orphan files", slog.Int("count", len(removed)))
	}
	return removed, nil
}
