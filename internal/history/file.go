package history

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "otdbot/pkg/logx"
)

// fileStore keeps the whole log in memory (it is bounded and small) and
// rewrites the file atomically on every append: write-to-temp then rename,
// so a crash mid-write never leaves a half-written log behind.
type fileStore struct {
	log logx.Logger

	mu        sync.Mutex
	path      string
	retention int
	records   []Record // newest first
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("history.path is required for file driver")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{log: log, path: path, retention: cfg.Retention}
	s.records = s.loadFromDisk()
	return s, nil
}

// loadFromDisk reads the persisted log. Any read or decode failure degrades
// to an empty log: corrupt memory means "no memory", not a crash.
func (s *fileStore) loadFromDisk() []Record {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("history file unreadable; starting empty", logx.String("path", s.path), logx.Err(err))
		}
		return nil
	}
	var recs []Record
	if err := json.Unmarshal(b, &recs); err != nil {
		s.log.Warn("history file corrupt; starting empty", logx.String("path", s.path), logx.Err(err))
		return nil
	}
	if len(recs) > s.retention {
		recs = recs[:s.retention]
	}
	return recs
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Load(ctx context.Context) ([]Record, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *fileStore) Recent(ctx context.Context, n int) ([]Record, error) {
	_ = ctx
	if n <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.records) {
		n = len(s.records)
	}
	out := make([]Record, n)
	copy(out, s.records[:n])
	return out, nil
}

func (s *fileStore) LastDateKey(ctx context.Context) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) == 0 {
		return "", nil
	}
	return s.records[0].DateKey, nil
}

func (s *fileStore) Append(ctx context.Context, rec Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, 0, len(s.records)+1)
	next = append(next, rec)
	next = append(next, s.records...)
	if len(next) > s.retention {
		next = next[:s.retention]
	}

	if err := writeJSONAtomic(s.path, next); err != nil {
		return err
	}
	s.records = next
	return nil
}

// writeJSONAtomic persists v as indented JSON via temp-file + rename.
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// WriteCurrent writes the "current selection" snapshot consumed by external
// overlays. It uses the same atomic write discipline as the log itself.
func WriteCurrent(path string, rec Record) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return writeJSONAtomic(path, rec)
}
