package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Cryptoprojectsfun/advisorhub/internal/database"
	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

const (
	createTable = `CREATE TABLE IF NOT EXISTS collections (
		key        TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

	createIndex = `CREATE INDEX IF NOT EXISTS collections_updated_at_idx ON collections (updated_at)`

	selectCollection = `SELECT data FROM collections WHERE key = @key`

	upsertCollection = `INSERT INTO collections (key, data, updated_at)
		VALUES (@key, @data, NOW())
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`
)

// Store keeps each collection as one JSONB row in the collections table.
type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the collections table when it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createTable); err != nil {
			return fmt.Errorf("create collections table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, createIndex); err != nil {
			return fmt.Errorf("create collections index: %w", err)
		}
		return nil
	})
}

func (s *Store) Name() string { return "postgres" }

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	query, args := database.NewQueryBuilder().
		AddParam("key", key).
		Build(selectCollection)

	var data []byte
	err := s.db.QueryRowSafe(ctx, query, args, &data)
	if err == sql.ErrNoRows {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	query, args := database.NewQueryBuilder().
		AddParam("key", key).
		AddParam("data", data).
		Build(upsertCollection)

	if _, err := s.db.ExecSafe(ctx, query, args...); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
