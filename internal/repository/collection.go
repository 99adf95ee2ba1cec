package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
)

// MutateFn receives the current items and returns the items to persist.
// Returning an error aborts the write.
type MutateFn[T any] func(items []T) ([]T, error)

// Repository is the typed view of one collection.
type Repository[T any] interface {
	Key() string
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Put(ctx context.Context, item T) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, fn MutateFn[T]) error
}

// Observer receives the timing of every backend call.
type Observer interface {
	ObserveStorage(collection, operation string, duration time.Duration, err error)
}

// Collection is a JSON array of T persisted under a single backend key.
// All access goes through one mutex, so Update is an atomic
// read-modify-write within the process.
type Collection[T any] struct {
	key      string
	resource string
	backend  Backend
	idOf     func(T) string
	log      *logger.Logger
	observer Observer
	timeout  time.Duration

	mu sync.Mutex
}

func NewCollection[T any](key, resource string, backend Backend, idOf func(T) string, log *logger.Logger) *Collection[T] {
	return &Collection[T]{
		key:      key,
		resource: resource,
		backend:  backend,
		idOf:     idOf,
		log:      log,
		timeout:  5 * time.Second,
	}
}

func (c *Collection[T]) Key() string { return c.key }

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T

	items, err := c.List(ctx)
	if err != nil {
		return zero, err
	}
	for _, item := range items {
		if c.idOf(item) == id {
			return item, nil
		}
	}
	return zero, apperrors.NewResourceNotFoundError(c.resource, id)
}

// Put replaces the item with the same id, or appends it.
func (c *Collection[T]) Put(ctx context.Context, item T) error {
	id := c.idOf(item)
	return c.Update(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if c.idOf(items[i]) == id {
				items[i] = item
				return items, nil
			}
		}
		return append(items, item), nil
	})
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.Update(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if c.idOf(items[i]) == id {
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, apperrors.NewResourceNotFoundError(c.resource, id)
	})
}

func (c *Collection[T]) Update(ctx context.Context, fn MutateFn[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return err
	}

	updated, err := fn(items)
	if err != nil {
		return err
	}

	return c.save(ctx, updated)
}

// Seed writes items only when the backend has never stored this key.
func (c *Collection[T]) Seed(ctx context.Context, items []T) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.call(ctx, "load", func(ctx context.Context) ([]byte, error) {
		return c.backend.Load(ctx, c.key)
	})
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return false, apperrors.NewStorageError(c.key, "seed", err)
	}
	if items == nil {
		items = []T{}
	}
	return true, c.save(ctx, items)
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	data, err := c.call(ctx, "load", func(ctx context.Context) ([]byte, error) {
		return c.backend.Load(ctx, c.key)
	})
	if errors.Is(err, ErrKeyNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError(c.key, "load", err)
	}

	items, err := decode[T](data)
	if err != nil {
		c.log.WithFields(map[string]interface{}{
			"collection": c.key,
			"error":      err.Error(),
		}).Error("Stored collection has an unexpected shape")
		return nil, apperrors.NewStorageError(c.key, "decode", err)
	}
	return items, nil
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return apperrors.NewStorageError(c.key, "encode", err)
	}

	_, err = c.call(ctx, "save", func(ctx context.Context) ([]byte, error) {
		return nil, c.backend.Save(ctx, c.key, data)
	})
	if err != nil {
		return apperrors.NewStorageError(c.key, "save", err)
	}
	return nil
}

func (c *Collection[T]) call(ctx context.Context, operation string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	data, err := fn(ctx)
	duration := time.Since(start)

	reported := err
	if errors.Is(err, ErrKeyNotFound) {
		reported = nil
	}
	c.log.LogStorageOperation(c.key, operation, duration, reported)
	if c.observer != nil {
		c.observer.ObserveStorage(c.key, operation, duration, reported)
	}
	return data, err
}

func decode[T any](data []byte) ([]T, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var items []T
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
