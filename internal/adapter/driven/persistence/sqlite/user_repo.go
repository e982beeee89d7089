package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Wyydra/yacall/internal/core/domain"
)

const dbTimeLayout = "2006-01-02 15:04:05"

const schema = `
CREATE TABLE IF NOT EXISTS users (
	rollno     TEXT    PRIMARY KEY CHECK(length(rollno) > 0),
	name       TEXT    NOT NULL DEFAULT 'User',
	email      TEXT    NOT NULL DEFAULT '',
	online     INTEGER NOT NULL DEFAULT 0,
	socket_id  TEXT,
	created_at TEXT    NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_users_online ON users(online);
`

// UserRepository is a UserDirectory backed by a SQLite file.
type UserRepository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*UserRepository, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &UserRepository{db: db}, nil
}

// Pragmas go in the DSN so every pooled connection gets them.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (r *UserRepository) Close() error {
	return r.db.Close()
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) (domain.User, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (rollno, name, email) VALUES (?, ?, ?) ON CONFLICT(rollno) DO NOTHING",
		user.ID.String(), user.Name, user.Email)
	if err != nil {
		return domain.User{}, unavailable("create user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.User{}, unavailable("create user", err)
	}
	if n == 0 {
		return domain.User{}, domain.ErrDuplicateUser
	}
	return r.FindByID(ctx, user.ID)
}

func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT rollno, name, email, online, socket_id, created_at FROM users WHERE rollno = ?", id.String())
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, unavailable("find user", err)
	}
	return u, nil
}

func (r *UserRepository) SetPresence(ctx context.Context, id domain.UserID, handle *domain.Handle, online bool) error {
	var socketID sql.NullString
	if handle != nil {
		socketID = sql.NullString{String: handle.String(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET online = ?, socket_id = ? WHERE rollno = ?", online, socketID, id.String())
	if err != nil {
		return unavailable("set presence", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("set presence", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) ListOnline(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT rollno, name, email, online, socket_id, created_at FROM users WHERE online = 1 ORDER BY rowid")
	if err != nil {
		return nil, unavailable("list online", err)
	}
	defer func() { _ = rows.Close() }()

	users := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, unavailable("scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list online", err)
	}
	return users, nil
}

func (r *UserRepository) ResetPresence(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE users SET online = 0, socket_id = NULL"); err != nil {
		return unavailable("reset presence", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (domain.User, error) {
	var (
		u         domain.User
		rollno    string
		socketID  sql.NullString
		createdAt string
	)
	if err := s.Scan(&rollno, &u.Name, &u.Email, &u.Online, &socketID, &createdAt); err != nil {
		return domain.User{}, err
	}
	u.ID = domain.UserID(rollno)
	if socketID.Valid {
		h, err := domain.ParseHandle(socketID.String)
		if err != nil {
			return domain.User{}, fmt.Errorf("socket_id: %w", err)
		}
		u.Handle = &h
	}
	t, err := time.ParseInLocation(dbTimeLayout, createdAt, time.UTC)
	if err != nil {
		return domain.User{}, fmt.Errorf("created_at: %w", err)
	}
	u.CreatedAt = t
	return u, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w: %w", op, domain.ErrDirectoryUnavailable, err)
}
