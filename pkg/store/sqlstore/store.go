// Package sqlstore keeps documents in a single SQL table. It serves both the
// embedded SQLite backend and Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/modoterra/lifedash/pkg/store"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Name   string
	Driver string
	Schema []string
	// Numbered placeholders ($1, $2, ...) instead of "?".
	Numbered bool
}

var (
	SQLite = Dialect{
		Name:   "sqlite",
		Driver: "sqlite",
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS documents (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				body TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL,
				UNIQUE (collection, id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, seq)`,
		},
	}
	Postgres = Dialect{
		Name:     "postgres",
		Driver:   "postgres",
		Numbered: true,
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS documents (
				seq BIGSERIAL PRIMARY KEY,
				collection TEXT NOT NULL,
				id TEXT NOT NULL,
				body JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				UNIQUE (collection, id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents (collection, seq)`,
		},
	}
)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	}
	return Dialect{}, fmt.Errorf("unsupported store driver %q", driver)
}

// Store is a store.Store over database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to the database and creates the schema if needed. For SQLite
// the DSN is a file path (its directory is created) or ":memory:".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if dialect.Name == SQLite.Name && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	s, err := New(ctx, db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle and migrates it.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	if dialect.Name == SQLite.Name {
		// One writer; SQLite serializes anyway and ":memory:" is per-connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode = WAL"} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				return nil, fmt.Errorf("%s: %w", pragma, err)
			}
		}
	}
	for _, stmt := range dialect.Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", dialect.Name, err)
		}
	}
	return &Store{db: db, dialect: dialect}, nil
}

func (s *Store) Name() string { return s.dialect.Name }

func (s *Store) Insert(ctx context.Context, collection string, doc any) (string, error) {
	id := store.NewID()
	body, err := store.Encode(doc, id)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO documents (collection, id, body, created_at) VALUES (?, ?, ?, ?)`),
		collection, id, string(body), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", collection, err)
	}
	return id, nil
}

func (s *Store) Find(ctx context.Context, collection string, q store.Query) ([]json.RawMessage, error) {
	q = q.Normalize()
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT body FROM documents WHERE collection = ? ORDER BY seq LIMIT ? OFFSET ?`),
		collection, q.Limit, q.Skip)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()

	out := []json.RawMessage{}
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("find %s: %w", collection, err)
		}
		out = append(out, json.RawMessage(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return out, nil
}

func (s *Store) FindByID(ctx context.Context, collection, id string) (json.RawMessage, error) {
	if err := store.CheckID(id); err != nil {
		return nil, err
	}
	body, err := s.body(ctx, s.db, collection, id)
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, id, err)
	}
	return json.RawMessage(body), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, set map[string]any) (err error) {
	if err := store.CheckID(id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	body, err := s.body(ctx, tx, collection, id)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	merged, err := store.Merge(body, set)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if _, err = tx.ExecContext(ctx,
		s.rebind(`UPDATE documents SET body = ? WHERE collection = ? AND id = ?`),
		string(merged), collection, id); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := store.CheckID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM documents WHERE collection = ? AND id = ?`), collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) body(ctx context.Context, q queryer, collection, id string) ([]byte, error) {
	var body []byte
	err := q.QueryRowContext(ctx,
		s.rebind(`SELECT body FROM documents WHERE collection = ? AND id = ?`),
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// rebind rewrites "?" placeholders for dialects that number them. Queries in
// this package never contain a literal "?".
func (s *Store) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ store.Store = (*Store)(nil)
