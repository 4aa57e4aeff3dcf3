package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"firestige.xyz/pktcraft/internal/core"
)

func newTestStore(t *testing.T) *FileFrameStore {
	t.Helper()
	s, err := NewFileFrameStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileFrameStore: %v", err)
	}
	return s
}

// fixedClock returns successive instants one second apart.
func fixedClock() func() time.Time {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestFileFrameStoreSaveLoad(t *testing.T) {
	s := newTestStore(t)
	saved, err := s.Save(SavedFrame{Label: "syn", Protocol: core.ProtocolTCP, Frame: []byte{0xde, 0xad, 0xbe, 0xef}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" || saved.Version != persistenceVersion || saved.CreatedAt.IsZero() {
		t.Fatalf("Save did not fill defaults: %+v", saved)
	}

	got, err := s.Load(saved.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Label != "syn" || got.Protocol != core.ProtocolTCP || string(got.Frame) != "\xde\xad\xbe\xef" {
		t.Errorf("Load returned %+v", got)
	}
	if !got.CreatedAt.Equal(saved.CreatedAt) {
		t.Errorf("CreatedAt changed: %v vs %v", got.CreatedAt, saved.CreatedAt)
	}
}

func TestFileFrameStoreOverwrite(t *testing.T) {
	s := newTestStore(t)
	first, err := s.Save(SavedFrame{Label: "a", Frame: []byte{1}})
	if err != nil {
		t.Fatal(err)
	}
	first.Label = "b"
	if _, err := s.Save(first); err != nil {
		t.Fatal(err)
	}
	got, err := s.Load(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Label != "b" {
		t.Errorf("expected overwritten label b, got %q", got.Label)
	}
}

func TestFileFrameStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load("missing"); !errors.Is(err, core.ErrFrameNotFound) {
		t.Errorf("Load: expected ErrFrameNotFound, got %v", err)
	}
	if err := s.Delete("missing"); !errors.Is(err, core.ErrFrameNotFound) {
		t.Errorf("Delete: expected ErrFrameNotFound, got %v", err)
	}
	if _, err := s.Load("../etc/passwd"); !errors.Is(err, core.ErrFrameNotFound) {
		t.Errorf("Load with path separator: expected ErrFrameNotFound, got %v", err)
	}
}

func TestFileFrameStoreListOrder(t *testing.T) {
	s := newTestStore(t)
	s.now = fixedClock()
	var ids []string
	for _, label := range []string{"one", "two", "three"} {
		f, err := s.Save(SavedFrame{Label: label, Frame: []byte(label)})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, f.ID)
	}

	frames, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.ID != ids[i] {
			t.Errorf("frame %d: expected %s, got %s (%s)", i, ids[i], f.ID, f.Label)
		}
	}
}

func TestFileFrameStoreListSkipsJunk(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save(SavedFrame{Label: "ok", Frame: []byte{1}}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "broken.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, ".x.123.tmp"), []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "README"), []byte("hi"), 0o600); err != nil {
		t.Fatal(err)
	}

	frames, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(frames) != 1 || frames[0].Label != "ok" {
		t.Errorf("expected only the valid frame, got %+v", frames)
	}
}

func TestFileFrameStoreNoTempLeftovers(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Save(SavedFrame{Frame: []byte{byte(i)}}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
	if len(entries) != 5 {
		t.Errorf("expected 5 files, got %d", len(entries))
	}
}

func TestFileFrameStoreClear(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.Save(SavedFrame{Frame: []byte{byte(i)}}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := s.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 removed, got %d", n)
	}
	frames, _ := s.List()
	if len(frames) != 0 {
		t.Errorf("expected empty store, got %d frames", len(frames))
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	m.now = fixedClock()

	buf := []byte{1, 2, 3}
	a, _ := m.Save(SavedFrame{Label: "a", Frame: buf})
	buf[0] = 9
	b, _ := m.Save(SavedFrame{Label: "b", Frame: []byte{4}})

	got, err := m.Load(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Frame[0] != 1 {
		t.Error("MemoryStore should copy frame bytes on save")
	}

	frames, _ := m.List()
	if len(frames) != 2 || frames[0].ID != a.ID || frames[1].ID != b.ID {
		t.Errorf("unexpected list order: %+v", frames)
	}

	if err := m.Delete(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(a.ID); !errors.Is(err, core.ErrFrameNotFound) {
		t.Errorf("expected ErrFrameNotFound, got %v", err)
	}
	if n, _ := m.Clear(); n != 1 {
		t.Errorf("expected 1 cleared, got %d", n)
	}
}

func TestMemoryStoreConcurrent(t *testing.T) {
	m := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := m.Save(SavedFrame{Frame: []byte{byte(i)}})
			if err != nil {
				t.Error(err)
				return
			}
			if _, err := m.Load(f.ID); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()
	frames, _ := m.List()
	if len(frames) != 20 {
		t.Errorf("expected 20 frames, got %d", len(frames))
	}
}
