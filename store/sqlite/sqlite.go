/*
Package sqlite provides a SQLite-backed ConnectionStore.

PURPOSE:
  Production-default credential storage: one row per connected account in a
  single-file database. The same patterns apply to PostgreSQL - see
  store/postgres for the shared-database variant.

ATOMIC ROTATION:
  Save uses an upsert and UpdateTokens a single UPDATE statement, so every
  token rewrite is one SQLite statement - access token, refresh token and
  expiry land together. Two concurrent refreshes resolve last-writer-wins;
  a half-written row cannot occur.

WAL MODE:
  Opened with WAL (Write-Ahead Logging): readers don't block, single writer
  at a time, better crash recovery.

SEE ALSO:
  - engine/store.go: Interface and atomicity contract
  - store/postgres:  Same contract on lib/pq
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/partsync/pricesync/engine"
)

// Store implements engine.ConnectionStore using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (and migrates) the database at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS connections (
		account_id TEXT PRIMARY KEY,
		account_name TEXT,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339

func (s *Store) Get(ctx context.Context, accountID engine.AccountID) (*engine.TenantConnection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, account_name, access_token, refresh_token, expires_at, created_at, updated_at
		FROM connections WHERE account_id = ?`, string(accountID))

	var conn engine.TenantConnection
	var id, name string
	var expiresAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&id, &name, &conn.AccessToken, &conn.RefreshToken, &expiresAt, &createdAt, &updatedAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, engine.ErrNotConnected
	case err != nil:
		return nil, fmt.Errorf("loading connection: %w", err)
	}

	conn.AccountID = engine.AccountID(id)
	conn.AccountName = name
	if expiresAt.Valid && expiresAt.String != "" {
		t, parseErr := time.Parse(timeLayout, expiresAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing expires_at: %w", parseErr)
		}
		conn.ExpiresAt = &t
	}
	if t, parseErr := time.Parse(timeLayout, createdAt); parseErr == nil {
		conn.CreatedAt = t
	}
	if t, parseErr := time.Parse(timeLayout, updatedAt); parseErr == nil {
		conn.UpdatedAt = t
	}
	return &conn, nil
}

func (s *Store) Save(ctx context.Context, conn engine.TenantConnection) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (account_id, account_name, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			account_name = excluded.account_name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		string(conn.AccountID), conn.AccountName, conn.AccessToken, conn.RefreshToken,
		formatExpiry(conn.ExpiresAt), now, now)
	if err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}
	return nil
}

// UpdateTokens is a single UPDATE statement: the rotation invariant holds
// even under concurrent refreshes.
func (s *Store) UpdateTokens(ctx context.Context, accountID engine.AccountID, accessToken, refreshToken string, expiresAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE connections
		SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		WHERE account_id = ?`,
		accessToken, refreshToken, formatExpiry(expiresAt),
		time.Now().UTC().Format(timeLayout), string(accountID))
	if err != nil {
		return fmt.Errorf("updating tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrNotConnected
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, accountID engine.AccountID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE account_id = ?`, string(accountID))
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

func formatExpiry(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
