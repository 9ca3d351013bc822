package notefiles

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/notesync/internal/notes"
)

// SaveFunc receives a note whose file content differs from its detail
// content once edits have settled.
type SaveFunc func(n *notes.Note, content string)

// Watch watches the workspace until ctx is cancelled. Writes to a note's
// file are debounced: the file is read once no write arrived for debounce,
// and onSave is called when its content differs from the note.
func Watch(ctx context.Context, files *Files, debounce time.Duration, logger *slog.Logger, onSave SaveFunc) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := files.Root()
	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("watcher: started", slog.String("root", root), slog.Duration("debounce", debounce))

	// pending maps a file name to the time of its latest write.
	pending := make(map[string]time.Time)
	tick := debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case now := <-ticker.C:
			for name, last := range pending {
				if now.Sub(last) < debounce {
					continue
				}
				delete(pending, name)
				processSave(files, name, logger, onSave)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name, ok := files.fs.Rel(ev.Name)
			if !ok || strings.HasPrefix(name, ".") {
				continue
			}
			pending[name] = time.Now()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func processSave(files *Files, name string, logger *slog.Logger, onSave SaveFunc) {
	n, ok := files.NoteForFile(name)
	if !ok {
		logger.Debug("watcher: not a note file", slog.String("file", name))
		return
	}
	content, err := files.Read(name)
	if err != nil {
		logger.Warn("watcher: read failed", slog.String("file", name), slog.String("error", err.Error()))
		return
	}
	if content == n.Detail().Content {
		return
	}
	logger.Debug("watcher: note edited", slog.String("id", n.ID()), slog.String("file", name))
	if onSave != nil {
		onSave(n, content)
	}
}
