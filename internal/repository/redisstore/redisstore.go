package redisstore

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/Cryptoprojectsfun/advisorhub/internal/repository"
)

// Store keeps each collection as one redis string under
// <prefix>:collection:<key>. Collections never expire.
type Store struct {
	client *redis.Client
	prefix string
}

func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "advisorhub"
	}
	return &Store{
		client: client,
		prefix: prefix,
	}
}

func (s *Store) Name() string { return "redis" }

func (s *Store) key(key string) string {
	return fmt.Sprintf("%s:collection:%s", s.prefix, key)
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, s.key(key), data, 0).Err()
}

// Keys lists the collections currently stored under the prefix.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	pattern := s.key("*")
	head := len(s.key(""))
	var keys []string

	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[head:])
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
