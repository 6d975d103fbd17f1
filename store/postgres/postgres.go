/*
Package postgres provides a PostgreSQL-backed ConnectionStore.

PURPOSE:
  Same contract as store/sqlite, for deployments where the credential
  records live in a shared database. Selected at startup by the
  database URL scheme.

ATOMIC ROTATION:
  Save is ON CONFLICT ... DO UPDATE on the account id, UpdateTokens a
  single UPDATE; Postgres row-level locking makes concurrent refreshes
  resolve last-writer-wins without partial writes.

SEE ALSO:
  - engine/store.go: Interface and atomicity contract
  - store/sqlite:    Single-file default
*/
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/partsync/pricesync/engine"
)

// Store implements engine.ConnectionStore using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New connects with a lib/pq connection string (postgres://...) and
// migrates the schema.
func New(connString string) (*Store, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
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
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Get(ctx context.Context, accountID engine.AccountID) (*engine.TenantConnection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT account_id, account_name, access_token, refresh_token, expires_at, created_at, updated_at
		FROM connections WHERE account_id = $1`, string(accountID))

	var conn engine.TenantConnection
	var id, name string
	var expiresAt sql.NullTime

	err := row.Scan(&id, &name, &conn.AccessToken, &conn.RefreshToken, &expiresAt, &conn.CreatedAt, &conn.UpdatedAt)
	switch {
	case err == sql.ErrNoRows:
		return nil, engine.ErrNotConnected
	case err != nil:
		return nil, fmt.Errorf("loading connection: %w", err)
	}

	conn.AccountID = engine.AccountID(id)
	conn.AccountName = name
	if expiresAt.Valid {
		t := expiresAt.Time
		conn.ExpiresAt = &t
	}
	return &conn, nil
}

func (s *Store) Save(ctx context.Context, conn engine.TenantConnection) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (account_id, account_name, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (account_id) DO UPDATE SET
			account_name = EXCLUDED.account_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`,
		string(conn.AccountID), conn.AccountName, conn.AccessToken, conn.RefreshToken,
		nullableTime(conn.ExpiresAt), now)
	if err != nil {
		return fmt.Errorf("saving connection: %w", err)
	}
	return nil
}

func (s *Store) UpdateTokens(ctx context.Context, accountID engine.AccountID, accessToken, refreshToken string, expiresAt *time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE connections
		SET access_token = $1, refresh_token = $2, expires_at = $3, updated_at = $4
		WHERE account_id = $5`,
		accessToken, refreshToken, nullableTime(expiresAt), time.Now().UTC(), string(accountID))
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
	_, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE account_id = $1`, string(accountID))
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
