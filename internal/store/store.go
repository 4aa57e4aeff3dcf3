// Package store persists saved frames for later display and replay.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/pktcraft/internal/core"
)

// FrameStore is the persistence interface for saved frames.
// All implementations must be safe for concurrent use.
type FrameStore interface {
	// Save assigns an ID and creation time when missing and persists f,
	// overwriting any existing record for the same ID.
	Save(f SavedFrame) (SavedFrame, error)
	// Load retrieves a single frame by ID.
	// Returns core.ErrFrameNotFound (via errors.Is) when not found.
	Load(id string) (SavedFrame, error)
	// Delete removes a frame. Deleting a missing frame returns core.ErrFrameNotFound.
	Delete(id string) error
	// List returns all frames oldest first; corrupt entries are logged and skipped.
	List() ([]SavedFrame, error)
	// Clear removes every frame and returns how many were removed.
	Clear() (int, error)
}

// SavedFrame is the on-disk wire format for one frame.
type SavedFrame struct {
	Version   string        `json:"version"` // "v1"
	ID        string        `json:"id"`
	Label     string        `json:"label,omitempty"`
	Protocol  core.Protocol `json:"protocol"`
	Frame     []byte        `json:"frame"` // base64 in JSON
	CreatedAt time.Time     `json:"created_at"`
}

// persistenceVersion is the current wire format version.
const persistenceVersion = "v1"

func prepare(f SavedFrame, now func() time.Time) SavedFrame {
	if f.Version == "" {
		f.Version = persistenceVersion
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now().UTC()
	}
	return f
}

func sortFrames(frames []SavedFrame) {
	sort.SliceStable(frames, func(i, j int) bool {
		if !frames[i].CreatedAt.Equal(frames[j].CreatedAt) {
			return frames[i].CreatedAt.Before(frames[j].CreatedAt)
		}
		return frames[i].ID < frames[j].ID
	})
}

// FileFrameStore persists frames as individual JSON files under a directory.
// Write operations use temp-file + atomic rename to guarantee crash safety.
type FileFrameStore struct {
	dir string
	now func() time.Time
}

// NewFileFrameStore creates a FileFrameStore rooted at dir.
// The directory is created (including parents) if it does not exist.
func NewFileFrameStore(dir string) (*FileFrameStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("frame store: create directory %q: %w", dir, err)
	}
	return &FileFrameStore{dir: dir, now: time.Now}, nil
}

// Save atomically writes f using a unique temp file + rename.
func (s *FileFrameStore) Save(f SavedFrame) (SavedFrame, error) {
	f = prepare(f, s.now)
	if err := validID(f.ID); err != nil {
		return SavedFrame{}, err
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return SavedFrame{}, fmt.Errorf("frame store: marshal %q: %w", f.ID, err)
	}

	// Temp file in the same directory so rename is atomic.
	tmpFile, err := os.CreateTemp(s.dir, "."+f.ID+".*.tmp")
	if err != nil {
		return SavedFrame{}, fmt.Errorf("frame store: create temp file for %q: %w", f.ID, err)
	}
	tmpName := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpName)
		return SavedFrame{}, fmt.Errorf("frame store: write temp file for %q: %w", f.ID, err)
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return SavedFrame{}, fmt.Errorf("frame store: close temp file for %q: %w", f.ID, err)
	}

	final := s.path(f.ID)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return SavedFrame{}, fmt.Errorf("frame store: rename temp to %q: %w", final, err)
	}

	slog.Debug("frame saved", "id", f.ID, "label", f.Label, "bytes", len(f.Frame))
	return f, nil
}

// Load reads the frame with the given id.
func (s *FileFrameStore) Load(id string) (SavedFrame, error) {
	if err := validID(id); err != nil {
		return SavedFrame{}, err
	}
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return SavedFrame{}, fmt.Errorf("frame store: %q: %w", id, core.ErrFrameNotFound)
		}
		return SavedFrame{}, fmt.Errorf("frame store: read %q: %w", id, err)
	}
	var f SavedFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return SavedFrame{}, fmt.Errorf("frame store: unmarshal %q: %w", id, err)
	}
	return f, nil
}

// Delete removes the file for id.
func (s *FileFrameStore) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	err := os.Remove(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("frame store: %q: %w", id, core.ErrFrameNotFound)
	}
	if err != nil {
		return fmt.Errorf("frame store: delete %q: %w", id, err)
	}
	slog.Debug("frame removed", "id", id)
	return nil
}

// List reads all {id}.json files in the directory.
// Files that cannot be read or decoded are logged and skipped.
// Unrecognised file names (including .tmp files) are ignored.
func (s *FileFrameStore) List() ([]SavedFrame, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("frame store: read directory %q: %w", s.dir, err)
	}

	var frames []SavedFrame
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
			continue
		}
		f, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			slog.Warn("frame store: skipping unreadable file",
				"file", filepath.Join(s.dir, name),
				"error", err,
			)
			continue
		}
		frames = append(frames, f)
	}
	sortFrames(frames)
	return frames, nil
}

// Clear removes every stored frame.
func (s *FileFrameStore) Clear() (int, error) {
	frames, err := s.List()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range frames {
		if err := s.Delete(f.ID); err != nil && !errors.Is(err, core.ErrFrameNotFound) {
			return n, err
		}
		n++
	}
	return n, nil
}

// path returns the absolute path to the JSON file for a given frame ID.
func (s *FileFrameStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID rejects IDs that would escape the store directory.
func validID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("frame store: invalid id %q: %w", id, core.ErrFrameNotFound)
	}
	return nil
}

// MemoryStore keeps frames in memory. It backs the control socket when no
// store directory is writable, and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	frames map[string]SavedFrame
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{frames: make(map[string]SavedFrame), now: time.Now}
}

func (m *MemoryStore) Save(f SavedFrame) (SavedFrame, error) {
	f = prepare(f, m.now)
	f.Frame = append([]byte(nil), f.Frame...)
	m.mu.Lock()
	m.frames[f.ID] = f
	m.mu.Unlock()
	return f, nil
}

func (m *MemoryStore) Load(id string) (SavedFrame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.frames[id]
	if !ok {
		return SavedFrame{}, fmt.Errorf("frame store: %q: %w", id, core.ErrFrameNotFound)
	}
	return f, nil
}

func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.frames[id]; !ok {
		return fmt.Errorf("frame store: %q: %w", id, core.ErrFrameNotFound)
	}
	delete(m.frames, id)
	return nil
}

func (m *MemoryStore) List() ([]SavedFrame, error) {
	m.mu.RLock()
	frames := make([]SavedFrame, 0, len(m.frames))
	for _, f := range m.frames {
		frames = append(frames, f)
	}
	m.mu.RUnlock()
	sortFrames(frames)
	return frames, nil
}

func (m *MemoryStore) Clear() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.frames)
	m.frames = make(map[string]SavedFrame)
	return n, nil
}

// Ensure both stores satisfy the FrameStore interface at compile time.
var (
	_ FrameStore = (*FileFrameStore)(nil)
	_ FrameStore = (*MemoryStore)(nil)
)
