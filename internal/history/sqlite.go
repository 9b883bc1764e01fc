//go:build sqlite
// +build sqlite

package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "otdbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db        *sql.DB
	log       logx.Logger
	retention int
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, retention: cfg.Retention}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]Record, error) {
	return s.Recent(ctx, s.retention)
}

func (s *sqliteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT date_key, identity, year, event, link, thumbnail, posted_at
		 FROM selections ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		// Unreadable state degrades to empty, mirroring the file backend.
		s.log.Warn("history query failed; treating as empty", logx.Err(err))
		return nil, nil
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var posted string
		if err := rows.Scan(&rec.DateKey, &rec.Identity, &rec.Year, &rec.Event, &rec.Link, &rec.Thumbnail, &posted); err != nil {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, posted); err == nil {
			rec.PostedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *sqliteStore) LastDateKey(ctx context.Context) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrDisabled
	}
	var key string
	err := s.db.QueryRowContext(ctx,
		`SELECT date_key FROM selections ORDER BY id DESC LIMIT 1`).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return key, nil
}

func (s *sqliteStore) Append(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if rec.PostedAt.IsZero() {
		rec.PostedAt = time.Now()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO selections(date_key, identity, year, event, link, thumbnail, posted_at)
		 VALUES(?,?,?,?,?,?,?)`,
		rec.DateKey, rec.Identity, rec.Year, rec.Event, rec.Link, rec.Thumbnail,
		rec.PostedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	// Enforce the retention bound; oldest rows go first.
	_, err = tx.ExecContext(ctx,
		`DELETE FROM selections WHERE id NOT IN
		   (SELECT id FROM selections ORDER BY id DESC LIMIT ?)`, s.retention)
	if err != nil {
		return err
	}
	return tx.Commit()
}
