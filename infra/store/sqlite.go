package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kilianp07/obsched/core/model"
	corestore "github.com/kilianp07/obsched/core/store"
)

//go:embed migrations.sql
var migrations string

// SQLiteStore persists the scheduler state in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ corestore.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string, busyTimeout time.Duration) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(migrations); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) inTx(ctx context.Context, f func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) Schedule(ctx context.Context) ([]model.ScheduleEntry, error) {
	return queryEntries(ctx, s.db)
}

func queryEntries(ctx context.Context, q querier) ([]model.ScheduleEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, start_ms FROM entries ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.StartMs); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func replaceEntries(ctx context.Context, tx *sql.Tx, entries []model.ScheduleEntry) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (seq, id, name, start_ms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	for i, e := range entries {
		if _, err := stmt.ExecContext(ctx, i, e.ID, e.Name, e.StartMs); err != nil {
			return fmt.Errorf("insert entry %s: %w", e.ID, err)
		}
	}
	return nil
}

func setAnchor(ctx context.Context, tx *sql.Tx, anchorMs int64) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO contest (id, anchor_ms) VALUES (1, ?)
        ON CONFLICT(id) DO UPDATE SET anchor_ms = excluded.anchor_ms`, anchorMs)
	return err
}

func (s *SQLiteStore) WriteSchedule(ctx context.Context, entries []model.ScheduleEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return replaceEntries(ctx, tx, entries) })
}

func (s *SQLiteStore) UpdateSchedule(ctx context.Context, f corestore.ScheduleUpdate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		entries, err := queryEntries(ctx, tx)
		if err != nil {
			return err
		}
		next, err := f(entries)
		if err != nil {
			return err
		}
		return replaceEntries(ctx, tx, next)
	})
}

func (s *SQLiteStore) ContestAnchor(ctx context.Context) (int64, bool, error) {
	return queryAnchor(ctx, s.db)
}

func queryAnchor(ctx context.Context, q querier) (int64, bool, error) {
	var anchor int64
	err := q.QueryRowContext(ctx, `SELECT anchor_ms FROM contest WHERE id = 1`).Scan(&anchor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return anchor, true, nil
}

func (s *SQLiteStore) SetContestAnchor(ctx context.Context, anchorMs int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error { return setAnchor(ctx, tx, anchorMs) })
}

func (s *SQLiteStore) Rebase(ctx context.Context, anchorMs int64, entries []model.ScheduleEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := setAnchor(ctx, tx, anchorMs); err != nil {
			return err
		}
		return replaceEntries(ctx, tx, entries)
	})
}

func (s *SQLiteStore) UpdateContest(ctx context.Context, f corestore.ContestUpdate) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		anchor, ok, err := queryAnchor(ctx, tx)
		if err != nil {
			return err
		}
		entries, err := queryEntries(ctx, tx)
		if err != nil {
			return err
		}
		anchor, next, err := f(anchor, ok, entries)
		if err != nil {
			return err
		}
		if err := setAnchor(ctx, tx, anchor); err != nil {
			return err
		}
		return replaceEntries(ctx, tx, next)
	})
}

func (s *SQLiteStore) Catalog(ctx context.Context) ([]model.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, duration_ms, is_video FROM catalog ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.CatalogItem
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.ID, &it.Name, &it.DurationMs, &it.IsVideo); err != nil {
			return nil, err
		}
		res = append(res, it)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) WriteCatalog(ctx context.Context, items []model.CatalogItem) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalog`); err != nil {
			return err
		}
		for i, it := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO catalog (seq, id, name, duration_ms, is_video) VALUES (?, ?, ?, ?, ?)`,
				i, it.ID, it.Name, it.DurationMs, it.IsVideo); err != nil {
				return fmt.Errorf("insert item %s: %w", it.Name, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Settings(ctx context.Context) (model.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := model.Settings{}
	for rows.Next() {
		var k, raw string
		if err := rows.Scan(&k, &raw); err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decode setting %s: %w", k, err)
		}
		res[k] = v
	}
	return res, rows.Err()
}

func (s *SQLiteStore) WriteSettings(ctx context.Context, settings model.Settings) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM settings`); err != nil {
			return err
		}
		for k, v := range settings {
			b, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode setting %s: %w", k, err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)`, k, string(b)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) TemplateVersions(ctx context.Context, name string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM templates WHERE name = ? ORDER BY version`, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

func (s *SQLiteStore) SaveTemplate(ctx context.Context, name string, version int, t model.Template) error {
	b, err := json.Marshal(nonNil(t.Schedule))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (name, version, anchor_ms, schedule) VALUES (?, ?, ?, ?)`,
		name, version, t.AnchorMs, string(b))
	return err
}

func (s *SQLiteStore) LoadTemplate(ctx context.Context, name string, version int) (model.Template, error) {
	var (
		t   model.Template
		raw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT anchor_ms, schedule FROM templates WHERE name = ? AND version = ?`, name, version).
		Scan(&t.AnchorMs, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Template{}, fmt.Errorf("template %s.%d: %w", name, version, corestore.ErrNotFound)
	}
	if err != nil {
		return model.Template{}, err
	}
	if err := json.Unmarshal([]byte(raw), &t.Schedule); err != nil {
		return model.Template{}, fmt.Errorf("decode template %s.%d: %w", name, version, err)
	}
	return t, nil
}

func (s *SQLiteStore) TemplateNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT name FROM templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
