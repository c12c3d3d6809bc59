package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// EnsureSchema creates the settings table when it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create settings table: %w", err)
	}

	return nil
}

// Get returns the stored value of key or ErrNotFound.
func (r *Repository) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT value FROM settings WHERE key = $1;`

	var value string
	if err := r.db.QueryRow(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}

	return value, nil
}

// Set upserts the value of key. Last write wins.
func (r *Repository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at;
	`

	if _, err := r.db.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}

	r.log.DebugContext(ctx, "Setting stored", "key", key)

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM settings WHERE key = $1;`

	if _, err := r.db.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}

	r.log.DebugContext(ctx, "Setting removed", "key", key)

	return nil
}

// List returns every stored setting.
func (r *Repository) List(ctx context.Context) (map[string]string, error) {
	query := `SELECT key, value FROM settings ORDER BY key;`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if errScan := rows.Scan(&key, &value); errScan != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", errScan)
		}
		values[key] = value
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return values, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
