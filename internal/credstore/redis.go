package credstore

import (
	"context"
	"fmt"

	"github.com/go-redis/redis"

	"github.com/felixgeelhaar/vhub/internal/errors"
)

const redisPrefix = "vhub"

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// Namespace separates credentials of different devices sharing one server.
	Namespace string
}

// RedisStore keeps credentials in redis, for kiosk deployments where several
// terminals share one login.
type RedisStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisStore connects to redis and verifies the connection with PING.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping().Err(); err != nil {
		client.Close()
		return nil, errors.NewStoreUnavailableError("redis", err)
	}

	namespace := opts.Namespace
	if namespace == "" {
		namespace = "default"
	}
	return &RedisStore{client: client, namespace: namespace}, nil
}

func (r *RedisStore) keyFor(key string) string {
	return fmt.Sprintf("%s:%s:%s", redisPrefix, r.namespace, key)
}

// Get executes a GET for the namespaced key. A missing key is not an error.
func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(r.keyFor(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStoreUnavailableError("redis", err)
	}
	return value, true, nil
}

// Set executes a SET without expiry; the server decides when a token dies.
func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(r.keyFor(key), value, 0).Err(); err != nil {
		return errors.NewStoreUnavailableError("redis", err)
	}
	return nil
}

// Clear executes a DEL. Deleting a missing key is a no-op in redis as well.
func (r *RedisStore) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(r.keyFor(key)).Err(); err != nil {
		return errors.NewStoreUnavailableError("redis", err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
