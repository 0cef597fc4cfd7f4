package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jamesprial/go-reddift/pkg/types"
)

// SQLiteKeychain keeps tokens in a SQLite database file. Each Open opens the
// database and each Close releases it, so nothing is held between sessions.
type SQLiteKeychain struct {
	path string
}

// NewSQLiteKeychain returns a keychain backed by the database at path. The
// file and its parent directory are created on first Open.
func NewSQLiteKeychain(path string) *SQLiteKeychain {
	return &SQLiteKeychain{path: path}
}

// Path returns the database location.
func (k *SQLiteKeychain) Path() string { return k.path }

// Open implements Keychain.
func (k *SQLiteKeychain) Open(ctx context.Context) (Session, error) {
	db, err := openDB(ctx, k.path)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		return nil, errors.Join(fmt.Errorf("init token schema: %w", err), db.Close())
	}

	return &sqliteSession{db: db}, nil
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create token db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open token db at %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping token db at %s: %w", path, err)
	}

	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tokens (
			name TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			updated_at INTEGER NOT NULL DEFAULT (unixepoch())
		);
	`)
	return err
}

type sqliteSession struct {
	db *sql.DB
}

func (s *sqliteSession) Store(ctx context.Context, key string, tok *types.OAuthToken) error {
	if key == "" {
		return ErrEmptyKey
	}
	if tok == nil {
		return errors.New("store: nil token")
	}

	payload, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tokens (name, payload) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = unixepoch()`,
		key, string(payload),
	)
	if err != nil {
		return fmt.Errorf("store token %s: %w", key, err)
	}
	return nil
}

func (s *sqliteSession) Retrieve(ctx context.Context, key string) (*types.OAuthToken, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM tokens WHERE name = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve token %s: %w", key, err)
	}

	var tok types.OAuthToken
	if err := json.Unmarshal([]byte(payload), &tok); err != nil {
		return nil, fmt.Errorf("unmarshal token %s: %w", key, err)
	}
	return &tok, nil
}

func (s *sqliteSession) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM tokens WHERE name = ?`, key); err != nil {
		return fmt.Errorf("delete token %s: %w", key, err)
	}
	return nil
}

func (s *sqliteSession) Close() error {
	return s.db.Close()
}
