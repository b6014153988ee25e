// Package registry persists the set of users who started the bot, for
// admin broadcasts.
package registry

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         INTEGER PRIMARY KEY,
	username   TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	first_seen TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Registry is a SQLite-backed user registry.
type Registry struct {
	db *sql.DB
}

// Open opens (or creates) the registry database at path.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create users table: %w", err)
	}
	return &Registry{db: db}, nil
}

// Add records a user, updating the name fields if the user is already
// known.
func (r *Registry) Add(ctx context.Context, userID int64, username, firstName, lastName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, first_name, last_name) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   username = excluded.username,
		   first_name = excluded.first_name,
		   last_name = excluded.last_name`,
		userID, username, firstName, lastName)
	if err != nil {
		return fmt.Errorf("register user %d: %w", userID, err)
	}
	return nil
}

// All returns the IDs of every registered user.
func (r *Registry) All(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return ids, nil
}

// Remove deletes a user, typically after delivery reported the bot was
// blocked. Removing an unknown user is not an error.
func (r *Registry) Remove(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("remove user %d: %w", userID, err)
	}
	return nil
}

// Close releases the database handle.
func (r *Registry) Close() error {
	return r.db.Close()
}
