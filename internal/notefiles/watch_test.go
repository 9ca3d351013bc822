package notefiles

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/notesync/internal/notes"
	"github.com/starford/notesync/internal/testutil"
)

type saves struct {
	mu  sync.Mutex
	got []string
}

func (s *saves) add(n *notes.Note, content string) {
	s.mu.Lock()
	s.got = append(s.got, n.ID()+":"+content)
	s.mu.Unlock()
}

func (s *saves) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func TestWatch_DebouncedSave(t *testing.T) {
	dir, store, files := filesEnv(t)
	n := store.Upsert(record("n1", 1, "v0"))
	name, _ := files.Open(n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var s saves
	go Watch(ctx, files, 150*time.Millisecond, testutil.Logger(), s.add)
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, name)
	for _, c := range []string{"v1", "v2", "v3"} {
		_ = os.WriteFile(path, []byte(c), 0o644)
		time.Sleep(20 * time.Millisecond)
	}

	testutil.Eventually(t, 5*time.Second, 20*time.Millisecond, func() bool {
		return len(s.list()) > 0
	}, "save never reported")
	time.Sleep(300 * time.Millisecond)

	got := s.list()
	if len(got) != 1 || got[0] != "n1:v3" {
		t.Errorf("saves = %v, want [n1:v3]", got)
	}
}

func TestWatch_IgnoresUnchangedAndForeign(t *testing.T) {
	dir, store, files := filesEnv(t)
	n := store.Upsert(record("n1", 1, "same"))
	name, _ := files.Open(n)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var s saves
	go Watch(ctx, files, 20*time.Millisecond, testutil.Logger(), s.add)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, name), []byte("same"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "random.txt"), []byte("x"), 0o644)
	time.Sleep(300 * time.Millisecond)

	if got := s.list(); len(got) != 0 {
		t.Errorf("unexpected saves: %v", got)
	}
}
