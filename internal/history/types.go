package history

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "otdbot/pkg/logx"
)

var ErrDisabled = errors.New("history disabled")

// Config configures the history store.
//
// Driver values:
//   - "file": dependency-free JSON file backend
//   - "sqlite": SQLite database file (optional build tag)
type Config struct {
	Driver      string
	Path        string
	Retention   int           // max records kept; oldest dropped first
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Record is one remembered selection. Newest records sort first.
type Record struct {
	DateKey   string    `json:"date_key"`
	Identity  string    `json:"identity"`
	Year      string    `json:"year"`
	Event     string    `json:"event"`
	Link      string    `json:"link,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	PostedAt  time.Time `json:"posted_at"`
}

// Store is the persistence API for past selections.
//
// Load never fails on corrupt state: unreadable history decodes to an empty
// sequence so the pipeline can proceed as if it had never run.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)
	// LastDateKey returns the newest record's DateKey, or "" when empty.
	LastDateKey(ctx context.Context) (string, error)
	// Append prepends one record, truncates to the retention bound, and
	// persists atomically.
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = 100
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown history driver: " + cfg.Driver)
	}
}
