package preview

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
	"github.com/segmentio/ksuid"
)

// Store retains rendered preview documents on disk for a bounded window.
// Expired entries are swept by the cache janitor, which also unlinks the
// backing file. Safe for concurrent use.
type Store struct {
	dir     string
	entries *gocache.Cache
}

// New creates a store rooted at dir. ttl is the retention window, sweep the
// janitor interval.
func New(dir string, ttl, sweep time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("preview dir: %w", err)
	}
	c := gocache.New(ttl, sweep)
	c.OnEvicted(func(id string, v interface{}) {
		path, ok := v.(string)
		if !ok {
			return
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn("failed removing expired preview", "id", id, "error", err)
			return
		}
		log.Debug("preview expired", "id", id)
	})
	return &Store{dir: dir, entries: c}, nil
}

// Put materializes data as a preview file and registers it under a fresh
// id.
func (s *Store) Put(data []byte) (string, error) {
	id := ksuid.New().String()
	path := filepath.Join(s.dir, id+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write preview: %w", err)
	}
	s.entries.SetDefault(id, path)
	return id, nil
}

// Path resolves an id to its preview file. Unknown and expired ids both
// report not-found; neither is an error.
func (s *Store) Path(id string) (string, bool) {
	v, ok := s.entries.Get(id)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// Len reports how many previews are currently retained.
func (s *Store) Len() int {
	return s.entries.ItemCount()
}

// Close drops every retained preview, deleting the backing files.
func (s *Store) Close() {
	for id := range s.entries.Items() {
		s.entries.Delete(id)
	}
}
