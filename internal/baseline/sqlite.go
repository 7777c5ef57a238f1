package baseline

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/agentstation/tally/pkg/constants"
	"github.com/agentstation/tally/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS baselines (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	created_at  INTEGER NOT NULL,
	fingerprint TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT '',
	record      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_baselines_name_created ON baselines (name, created_at);
`

// sqliteStore keeps one row per record; the record itself is stored as
// JSON with the columns needed for lookups alongside.
type sqliteStore struct {
	db *sql.DB
}

func openSQLite(cfg Config) (*sqliteStore, error) {
	if cfg.Path == "" {
		return nil, &errors.ConfigError{Component: "store", Message: "path is required for the sqlite driver"}
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
			return nil, errors.WrapIO("create", dir, err)
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, errors.WrapIO("open", cfg.Path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqliteStore) migrate() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return errors.WrapIO("migrate", "", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return errors.WrapIO("migrate", "", err)
	}
	return nil
}

func (s *sqliteStore) Save(ctx context.Context, r *Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := r.marshal()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO baselines (id, name, created_at, fingerprint, status, record) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.CreatedAt.UnixNano(), r.Fingerprint, r.Status, string(data),
	)
	if err != nil {
		return errors.WrapIO("write", r.Name, err)
	}
	return nil
}

func (s *sqliteStore) Latest(ctx context.Context, name string) (*Record, error) {
	records, err := s.History(ctx, name, 1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, notFound(name)
	}
	return records[0], nil
}

func (s *sqliteStore) History(ctx context.Context, name string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM baselines WHERE name = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		name, limit,
	)
	if err != nil {
		return nil, errors.WrapIO("read", name, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, errors.WrapIO("read", name, err)
		}
		r, err := unmarshal([]byte(data))
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("read", name, err)
	}
	return out, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
