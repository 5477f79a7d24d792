package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

const (
	UsersCollection    = "users"
	TasksCollection    = "tasks"
	ProjectsCollection = "projects"
	ClientsCollection  = "clients"
)

// Backend persists whole collections as JSON documents. Load returns nil
// data and a nil error when the collection has never been saved.
type Backend interface {
	Load(ctx context.Context, collection string) ([]byte, error)
	Save(ctx context.Context, collection string, data []byte) error
	Ping(ctx context.Context) error
	Close() error
}

type Options struct {
	Backend string // memory, file or sqlite
	Driver  string // sqlite3 (mattn, cgo) or sqlite (modernc)
	Path    string // sqlite database file
	DataDir string // directory for the file backend
}

// Open builds the backend named in opts.
func Open(opts Options) (Backend, error) {
	switch opts.Backend {
	case "memory":
		return NewMemoryBackend(), nil
	case "file":
		return NewFileBackend(opts.DataDir)
	case "sqlite", "":
		return OpenSQLite(opts.Driver, opts.Path)
	}
	return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
}

// SQLBackend keeps one row per collection.
type SQLBackend struct {
	db *sql.DB
}

func OpenSQLite(driver, path string) (*SQLBackend, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dsn string
	switch driver {
	case "sqlite3", "":
		driver = "sqlite3"
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	case "sqlite":
		dsn = path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	default:
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create collections table: %w", err)
	}

	return &SQLBackend{db: db}, nil
}

func (b *SQLBackend) Load(ctx context.Context, collection string) ([]byte, error) {
	row := b.db.QueryRowContext(ctx, "SELECT data FROM collections WHERE name = ?", collection)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	return []byte(data), nil
}

func (b *SQLBackend) Save(ctx context.Context, collection string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO collections (name, data, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP
	`, collection, string(data))
	if err != nil {
		return fmt.Errorf("failed to upsert collection: %w", err)
	}
	return nil
}

func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
