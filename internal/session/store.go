package session

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store defines the interface for session storage operations.
type Store interface {
	// Create creates a new session with Version set to 1.
	Create(ctx context.Context, data *State) error

	// Get retrieves a session by ID.
	// Returns nil if the session is not found (not an error).
	Get(ctx context.Context, id string) (*State, error)

	// Update updates an existing session with optimistic locking.
	// Returns ErrVersionConflict if the version does not match,
	// ErrNotFound if the session does not exist.
	Update(ctx context.Context, data *State) error

	// Delete deletes a session by ID.
	Delete(ctx context.Context, id string) error

	// Close closes the store and releases any resources.
	Close() error
}

// StoreType represents the type of session store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// StoreOption is a functional option for configuring a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	redisTTL    time.Duration
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the TTL for Redis keys.
func WithRedisTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.redisTTL = ttl
	}
}

// NewStore creates a Store for the given driver type.
// For Redis, WithRedisClient is required.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{}
	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return &memoryStore{
			sessions: make(map[string]*State),
		}, nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := config.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisStore{
			client: config.redisClient,
			ttl:    ttl,
		}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// NewSessionID generates a widget session identifier. The web_ prefix marks the
// visitor as a web client when the ID is used as a messaging JID.
func NewSessionID() string {
	return fmt.Sprintf("web_%d", rand.Intn(1_000_000_000))
}

// GetOrCreate returns the stored session for id, creating one (with a fresh ID
// when id is empty) if it does not exist. Idempotent for an existing id.
func GetOrCreate(ctx context.Context, store Store, id string) (*State, error) {
	if id != "" {
		data, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if data != nil {
			return data, nil
		}
	}

	if id == "" {
		id = NewSessionID()
	}
	data := &State{ID: id}
	if err := store.Create(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}
