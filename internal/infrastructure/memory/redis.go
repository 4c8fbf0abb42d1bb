package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "helix:memory:"

// RedisConfig holds redis connection settings for runtime memory.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// RedisMemory keeps runtime data in redis so several instances share it.
type RedisMemory struct {
	client        redis.UniversalClient
	prefix        string
	ttl           time.Duration
	applicationID func() uint32
	timeout       time.Duration
}

// NewRedisMemory connects to redis and verifies the connection.
func NewRedisMemory(cfg RedisConfig, applicationID func() uint32) (*RedisMemory, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisMemoryWithClient(client, cfg.Prefix, cfg.TTL, applicationID), nil
}

// NewRedisMemoryWithClient wraps an existing client.
func NewRedisMemoryWithClient(client redis.UniversalClient, prefix string, ttl time.Duration, applicationID func() uint32) *RedisMemory {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisMemory{
		client:        client,
		prefix:        prefix,
		ttl:           ttl,
		applicationID: applicationID,
		timeout:       3 * time.Second,
	}
}

// Filename returns the redis key holding name. A location replaces the application id scope.
func (m *RedisMemory) Filename(name, location string) string {
	scope := location
	if scope == "" {
		scope = strconv.FormatUint(uint64(m.applicationID()), 10)
	}
	return m.prefix + scope + ":" + escapeName(name)
}

// LoadData decodes the stored value into generic JSON types.
func (m *RedisMemory) LoadData(name, location string) (any, error) {
	var data any
	if err := m.LoadInto(name, location, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// LoadInto decodes the stored value into dst.
func (m *RedisMemory) LoadInto(name, location string, dst any) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	raw, err := m.client.Get(ctx, m.Filename(name, location)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("memory: load %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return ErrNotFound
	}
	return nil
}

// SaveData stores data with the configured TTL (zero keeps it forever).
func (m *RedisMemory) SaveData(name string, data any, location string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("memory: encode %s: %w", name, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.client.Set(ctx, m.Filename(name, location), raw, m.ttl).Err(); err != nil {
		return fmt.Errorf("memory: save %s: %w", name, err)
	}
	return nil
}

// Close closes the redis client.
func (m *RedisMemory) Close() error {
	return m.client.Close()
}

var _ Memory = (*RedisMemory)(nil)
