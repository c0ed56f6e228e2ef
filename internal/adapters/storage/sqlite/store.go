// Package sqlite stores user documents as JSON rows in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/PabloGalante/amika-agent/internal/adapters/storage/feed"
	"github.com/PabloGalante/amika-agent/internal/domain"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Store implements domain.UserStore and, through its broadcaster, domain.ChangeFeed.
// Change events are published by this process only.
type Store struct {
	*feed.Broadcaster

	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the database at path and migrates the schema.
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	s := &Store{Broadcaster: feed.NewBroadcaster(), db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL DEFAULT '',
			doc        TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	now := s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("sqlite: encode user: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, doc, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		string(user.ID), user.Email, string(doc), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite: insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserExists
	}

	s.Publish(domain.ChangeEvent{Kind: domain.ChangeInserted, UserID: user.ID, User: user.Clone()})
	return nil
}

func (s *Store) SaveUser(ctx context.Context, user *domain.User) error {
	prev, err := s.FindUser(ctx, user.ID)
	if err != nil {
		return err
	}
	user.CreatedAt = prev.CreatedAt
	user.UpdatedAt = s.now().UTC()
	doc, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("sqlite: encode user: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = ?, doc = ?, updated_at = ? WHERE id = ?`,
		user.Email, string(doc), user.UpdatedAt.Format(time.RFC3339Nano), string(user.ID)); err != nil {
		return fmt.Errorf("sqlite: update user: %w", err)
	}

	s.Publish(domain.ChangeEvent{Kind: domain.ChangeModified, UserID: user.ID, User: user.Clone()})
	return nil
}

func (s *Store) FindUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM users WHERE id = ?`, string(id)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: find user: %w", err)
	}
	return decodeUser(doc)
}

func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list users: %w", err)
	}
	defer rows.Close()

	var out []*domain.User
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("sqlite: scan user: %w", err)
		}
		u, err := decodeUser(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func decodeUser(doc string) (*domain.User, error) {
	var u domain.User
	if err := json.Unmarshal([]byte(doc), &u); err != nil {
		return nil, fmt.Errorf("sqlite: decode user: %w", err)
	}
	return &u, nil
}
