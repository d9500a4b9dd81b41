// Package presence tracks which members were recently seen in a workspace.
// Rows are ephemeral: each (workspace, user) key carries a lastSeen stamp
// and expires after the configured TTL.
package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one member's presence record in a workspace.
type Entry struct {
	UserID   string    `json:"user_id"`
	LastSeen time.Time `json:"last_seen"`
}

// RedisStore implements presence storage using Redis
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed presence store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(workspaceID, userID string) string {
	return "presence:" + workspaceID + ":" + userID
}

// Touch records that a user was just seen in a workspace.
func (s *RedisStore) Touch(ctx context.Context, workspaceID, userID string, seenAt time.Time) error {
	entry := Entry{UserID: userID, LastSeen: seenAt}
	jsonData, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal presence entry: %w", err)
	}
	if err := s.client.Set(ctx, s.key(workspaceID, userID), jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save presence: %w", err)
	}
	return nil
}

// List returns all non-expired presence entries for a workspace.
func (s *RedisStore) List(ctx context.Context, workspaceID string) ([]Entry, error) {
	pattern := "presence:" + workspaceID + ":*"
	entries := make([]Entry, 0)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		jsonData, err := s.client.Get(ctx, iter.Val()).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read presence key: %w", err)
		}
		var entry Entry
		if err := json.Unmarshal([]byte(jsonData), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan presence keys: %w", err)
	}
	return entries, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
