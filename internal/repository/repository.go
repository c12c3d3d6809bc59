package repository

import (
	"context"
	"errors"
	"log/slog"
)

// ErrNotFound is returned by Get when the key has no stored value.
var ErrNotFound = errors.New("setting not found")

// Interface is a persistent key-value store for user settings.
type Interface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string]string, error)
	Ping(ctx context.Context) error
}

// Repository is the Postgres-backed settings store.
type Repository struct {
	db  Database
	log *slog.Logger
}

// NewRepository creates a new instance of Repository with the provided Database.
// It returns a pointer to the newly created Repository.
func NewRepository(db Database, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log}
}
