package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore is the SQL-backed credential store. It opens the
// standard-library *sql.DB through the pgx stdlib driver.
//
// The core only ever reads from this store and appends to auth_log; schema
// migrations, user creation and password resets belong to the web
// application, an external collaborator.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool against dsn (database.uri).
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("credentials: open: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) FindByUsername(ctx context.Context, name string) (UserRow, error) {
	const query = `
		SELECT id, username, salt, verifier, access, active
		FROM users
		WHERE username = $1
	`

	var (
		row        UserRow
		accessName string
	)
	err := s.db.QueryRowContext(ctx, query, NormalizeUsername(name)).Scan(
		&row.ID, &row.Username, &row.Salt, &row.Verifier, &accessName, &row.Active,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRow{}, ErrNotFound
		}
		return UserRow{}, fmt.Errorf("credentials: find by username: %w", err)
	}

	row.Access = ParseAccess(accessName)
	return row, nil
}

func (s *PostgresStore) RecordAuthAction(ctx context.Context, userID string, ip net.IP, at time.Time) {
	const query = `INSERT INTO auth_log (user_id, ip, at) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, userID, ip.String(), at); err != nil {
		// Fire-and-forget: the caller never waits on or propagates this
		// error, but it is still worth a log line.
		log.Println("credentials: record auth action:", err)
	}
}
