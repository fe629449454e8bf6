package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const sessionSchema = `
create table if not exists client_sessions (
	profile    text not null,
	key        text not null,
	value      text not null,
	updated_at timestamptz not null default now(),
	primary key (profile, key)
)`

// SQLStorage keeps the pair as two rows of client_sessions, keyed by a
// profile name so several operators can share one kiosk database.
type SQLStorage struct {
	db      *sql.DB
	profile string
}

// OpenSQL connects through the pgx driver.
func OpenSQL(dsn, profile string) (*SQLStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(15 * time.Minute)
	return NewSQLStorage(db, profile)
}

// NewSQLStorage wraps an open database.
func NewSQLStorage(db *sql.DB, profile string) (*SQLStorage, error) {
	if db == nil {
		return nil, errors.New("session: db is nil")
	}
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	return &SQLStorage{db: db, profile: profile}, nil
}

func (s *SQLStorage) Close() error { return s.db.Close() }

// EnsureSchema creates the sessions table when missing.
func (s *SQLStorage) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sessionSchema); err != nil {
		return fmt.Errorf("ensure session schema: %w", err)
	}
	return nil
}

func (s *SQLStorage) Load(ctx context.Context) (Record, error) {
	rows, err := s.db.QueryContext(ctx, `select key, value from client_sessions where profile = $1`, s.profile)
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	defer rows.Close()
	var rec Record
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Record{}, err
		}
		switch key {
		case TokenKey:
			rec.Token = value
		case UserKey:
			rec.User = value
		}
	}
	return rec, rows.Err()
}

func (s *SQLStorage) Save(ctx context.Context, rec Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `delete from client_sessions where profile = $1`, s.profile); err != nil {
		return fmt.Errorf("clear previous session: %w", err)
	}
	for _, kv := range [][2]string{{TokenKey, rec.Token}, {UserKey, rec.User}} {
		if _, err := tx.ExecContext(ctx,
			`insert into client_sessions(profile, key, value, updated_at) values ($1, $2, $3, now())`,
			s.profile, kv[0], kv[1]); err != nil {
			return fmt.Errorf("store %s: %w", kv[0], err)
		}
	}
	return tx.Commit()
}

func (s *SQLStorage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `delete from client_sessions where profile = $1`, s.profile); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
