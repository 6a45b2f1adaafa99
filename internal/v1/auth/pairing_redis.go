package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPairingStore backs the pairing-code store with Redis so the TTL is
// enforced by the store itself (SET ... EX) rather than by any in-process
// timer, and so the store can be shared across multiple gateway instances.
// Grounded on the teacher's internal/v1/bus.Service connection setup
// (dial timeouts, pool sizing, immediate Ping-on-construct).
type RedisPairingStore struct {
	client *redis.Client
}

// NewRedisPairingStore dials addr and verifies connectivity before
// returning, matching the teacher's bus.NewService behavior.
func NewRedisPairingStore(addr, password string) (*RedisPairingStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisPairingStore{client: client}, nil
}

// NewRedisPairingStoreFromClient wraps an already-constructed client,
// letting tests hand in a miniredis-backed client without dialing a real
// Redis server.
func NewRedisPairingStoreFromClient(client *redis.Client) *RedisPairingStore {
	return &RedisPairingStore{client: client}
}

func pairingKey(deviceID string) string {
	return "climanger:pairing:" + deviceID
}

func (s *RedisPairingStore) Put(ctx context.Context, deviceID string, code PairingCode, ttl time.Duration) error {
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal pairing code: %w", err)
	}
	return s.client.Set(ctx, pairingKey(deviceID), data, ttl).Err()
}

func (s *RedisPairingStore) Get(ctx context.Context, deviceID string) (PairingCode, error) {
	data, err := s.client.Get(ctx, pairingKey(deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return PairingCode{}, ErrNotFound
	}
	if err != nil {
		return PairingCode{}, fmt.Errorf("get pairing code: %w", err)
	}
	var code PairingCode
	if err := json.Unmarshal(data, &code); err != nil {
		return PairingCode{}, fmt.Errorf("unmarshal pairing code: %w", err)
	}
	return code, nil
}

func (s *RedisPairingStore) Delete(ctx context.Context, deviceID string) error {
	return s.client.Del(ctx, pairingKey(deviceID)).Err()
}

// Close releases the underlying Redis connection pool.
func (s *RedisPairingStore) Close() error {
	return s.client.Close()
}
