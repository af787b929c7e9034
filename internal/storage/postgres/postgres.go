// Package postgres provides a PostgreSQL-backed storage backend. The tree
// lives in a single nodes table; handles are row ids.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"

	"github.com/jcollard/webshell/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id        BIGSERIAL PRIMARY KEY,
	parent_id BIGINT REFERENCES nodes(id) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	is_dir    BOOLEAN NOT NULL,
	content   BYTEA,
	UNIQUE (parent_id, name)
);
CREATE INDEX IF NOT EXISTS nodes_parent_idx ON nodes(parent_id);
`

// Config holds connection settings.
type Config struct {
	DatabaseURL string `json:"database_url"`
}

// Backend implements storage.Backend over PostgreSQL.
type Backend struct {
	db *sql.DB
}

// New opens the database, verifies connectivity and ensures the schema.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Backend{db: db}, nil
}

// NewFromJSON creates a Backend from raw JSON config.
func NewFromJSON(ctx context.Context, raw json.RawMessage) (*Backend, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	return New(ctx, cfg)
}

func (b *Backend) Root(ctx context.Context) (storage.Handle, error) {
	var id int64
	err := b.db.QueryRowContext(ctx,
		`SELECT id FROM nodes WHERE parent_id IS NULL AND name = ''`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = b.db.QueryRowContext(ctx,
			`INSERT INTO nodes (parent_id, name, is_dir) VALUES (NULL, '', TRUE) RETURNING id`).Scan(&id)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	return id, nil
}

func (b *Backend) List(ctx context.Context, dir storage.Handle) ([]storage.Child, error) {
	id, err := asID(dir)
	if err != nil {
		return nil, err
	}

	rows, err := b.db.QueryContext(ctx,
		`SELECT id, name, is_dir FROM nodes WHERE parent_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("list children of %d: %w", id, err)
	}
	defer rows.Close()

	var children []storage.Child
	for rows.Next() {
		var childID int64
		var name string
		var isDir bool
		if err := rows.Scan(&childID, &name, &isDir); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, storage.Child{Name: name, IsDir: isDir, Handle: childID})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children of %d: %w", id, err)
	}
	return children, nil
}

func (b *Backend) ReadFile(ctx context.Context, file storage.Handle) ([]byte, error) {
	id, err := asID(file)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = b.db.QueryRowContext(ctx,
		`SELECT content FROM nodes WHERE id = $1 AND NOT is_dir`, id).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read node %d: %w", id, err)
	}
	return content, nil
}

func (b *Backend) WriteFile(ctx context.Context, file storage.Handle, body io.Reader) error {
	id, err := asID(file)
	if err != nil {
		return err
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	res, err := b.db.ExecContext(ctx,
		`UPDATE nodes SET content = $2 WHERE id = $1 AND NOT is_dir`, id, data)
	if err != nil {
		return fmt.Errorf("write node %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *Backend) Create(ctx context.Context, parent storage.Handle, name string, dir bool) (storage.Handle, error) {
	id, err := asID(parent)
	if err != nil {
		return nil, err
	}

	var childID int64
	err = b.db.QueryRowContext(ctx,
		`INSERT INTO nodes (parent_id, name, is_dir) VALUES ($1, $2, $3)
		 ON CONFLICT (parent_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, id, name, dir).Scan(&childID)
	if err != nil {
		return nil, fmt.Errorf("create %s under %d: %w", name, id, err)
	}
	return childID, nil
}

func (b *Backend) Remove(ctx context.Context, parent storage.Handle, name string) error {
	id, err := asID(parent)
	if err != nil {
		return err
	}

	res, err := b.db.ExecContext(ctx,
		`DELETE FROM nodes WHERE parent_id = $1 AND name = $2`, id, name)
	if err != nil {
		return fmt.Errorf("remove %s under %d: %w", name, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *Backend) Type() string { return "postgres" }

func (b *Backend) Close() error { return b.db.Close() }

func asID(h storage.Handle) (int64, error) {
	id, ok := h.(int64)
	if !ok {
		return 0, storage.ErrNotFound
	}
	return id, nil
}
