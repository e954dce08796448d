package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/inflect-gtm/inflect/pkg/model"
	"github.com/inflect-gtm/inflect/pkg/repository/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

// SQLite stores workspace records as JSON documents in a local database file
type SQLite struct {
	db *sqlx.DB
}

var _ Repository = (*SQLite)(nil)

type record struct {
	ID   string `db:"id"`
	Data string `db:"data"`
}

// NewSQLite opens or creates the database at path and applies migrations
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sqlx.Connect("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}

	s := &SQLite{db: db}
	if err := s.migrate(migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(fsys fs.FS) error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return goerr.Wrap(err, "failed to create schema_migrations table")
	}

	var current int
	if err := s.db.Get(&current, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return goerr.Wrap(err, "failed to read schema version")
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return goerr.Wrap(err, "failed to read migrations")
	}
	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return goerr.Wrap(err, "failed to read migration", goerr.V("file", name))
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return goerr.Wrap(err, "failed to apply migration", goerr.V("file", name))
		}
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return goerr.Wrap(err, "failed to record migration", goerr.V("file", name))
		}
	}

	return nil
}

func (s *SQLite) PutCustomers(ctx context.Context, customers []*model.Customer) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM customers`); err != nil {
		return goerr.Wrap(err, "failed to clear customers")
	}
	for i, c := range customers {
		data, err := json.Marshal(c)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal customer", goerr.V("id", c.ID))
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO customers (id, position, data) VALUES (?, ?, ?)`,
			string(c.ID), i, string(data)); err != nil {
			return goerr.Wrap(err, "failed to insert customer", goerr.V("id", c.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit customers")
	}
	return nil
}

func (s *SQLite) ListCustomers(ctx context.Context) ([]*model.Customer, error) {
	return selectAll[model.Customer](ctx, s.db, `SELECT id, data FROM customers ORDER BY position`)
}

func (s *SQLite) PutSegmentation(ctx context.Context, seg *model.Segmentation) error {
	return s.put(ctx, "segmentations", string(seg.ID), seg.CreatedAt, seg)
}

func (s *SQLite) GetLatestSegmentation(ctx context.Context) (*model.Segmentation, error) {
	var r record
	err := s.db.GetContext(ctx, &r, `SELECT id, data FROM segmentations ORDER BY created_at DESC, rowid DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get segmentation")
	}

	var seg model.Segmentation
	if err := json.Unmarshal([]byte(r.Data), &seg); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal segmentation", goerr.V("id", r.ID))
	}
	return &seg, nil
}

func (s *SQLite) PutOnboardingDoc(ctx context.Context, doc *model.OnboardingDoc) error {
	return s.put(ctx, "onboarding_docs", string(doc.ID), doc.CreatedAt, doc)
}

func (s *SQLite) ListOnboardingDocs(ctx context.Context) ([]*model.OnboardingDoc, error) {
	return selectAll[model.OnboardingDoc](ctx, s.db, `SELECT id, data FROM onboarding_docs ORDER BY created_at, rowid`)
}

func (s *SQLite) PutEmail(ctx context.Context, email *model.EmailRecord) error {
	return s.put(ctx, "emails", string(email.ID), email.SentAt, email)
}

func (s *SQLite) GetEmail(ctx context.Context, id model.EmailID) (*model.EmailRecord, error) {
	var r record
	err := s.db.GetContext(ctx, &r, `SELECT id, data FROM emails WHERE id = ?`, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "email not found", goerr.V("id", id))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get email", goerr.V("id", id))
	}

	var email model.EmailRecord
	if err := json.Unmarshal([]byte(r.Data), &email); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal email", goerr.V("id", id))
	}
	return &email, nil
}

func (s *SQLite) ListEmails(ctx context.Context, limit int) ([]*model.EmailRecord, error) {
	return selectAll[model.EmailRecord](ctx, s.db,
		`SELECT id, data FROM emails ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
}

func (s *SQLite) PutFollowupRun(ctx context.Context, run *model.FollowupRun) error {
	return s.put(ctx, "followup_runs", string(run.ID), run.CreatedAt, run)
}

func (s *SQLite) ListFollowupRuns(ctx context.Context, limit int) ([]*model.FollowupRun, error) {
	return selectAll[model.FollowupRun](ctx, s.db,
		`SELECT id, data FROM followup_runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, sqlLimit(limit))
}

// put upserts one JSON record; table is always a package constant
func (s *SQLite) put(ctx context.Context, table, id string, createdAt time.Time, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal record", goerr.V("table", table), goerr.V("id", id))
	}

	query := `INSERT INTO ` + table + ` (id, created_at, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET created_at = excluded.created_at, data = excluded.data`
	if _, err := s.db.ExecContext(ctx, query, id, createdAt.UnixNano(), string(data)); err != nil {
		return goerr.Wrap(err, "failed to put record", goerr.V("table", table), goerr.V("id", id))
	}
	return nil
}

// sqlLimit maps "no limit" to SQLite's -1
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func selectAll[T any](ctx context.Context, db *sqlx.DB, query string, args ...any) ([]*T, error) {
	var rows []record
	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, goerr.Wrap(err, "failed to select records")
	}

	out := make([]*T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := json.Unmarshal([]byte(r.Data), &v); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("id", r.ID))
		}
		out = append(out, &v)
	}
	return out, nil
}
