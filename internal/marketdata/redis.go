package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const quoteKeyPrefix = "quote:"

// RedisStore implements Store on top of a Redis key/value lookup.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Conn opens and pings a Redis connection.
func Conn(ctx context.Context, host string, port int, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

func (s *RedisStore) Get(ctx context.Context, ticker string) (Quote, bool, error) {
	val, err := s.client.Get(ctx, quoteKeyPrefix+ticker).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Quote{}, false, nil
		}
		return Quote{}, false, err
	}

	var quote Quote
	if err := json.Unmarshal([]byte(val), &quote); err != nil {
		return Quote{}, false, err
	}
	return quote, true, nil
}

func (s *RedisStore) Put(ctx context.Context, quote Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, quoteKeyPrefix+quote.Ticker, data, 0).Err()
}

// Seed writes quotes that are not already present.
func (s *RedisStore) Seed(ctx context.Context, quotes []Quote) error {
	for _, q := range quotes {
		data, err := json.Marshal(q)
		if err != nil {
			return err
		}
		if err := s.client.SetNX(ctx, quoteKeyPrefix+q.Ticker, data, 0).Err(); err != nil {
			return err
		}
	}
	return nil
}
