// Package cache stores JSON snapshots of per-user read models in memory or Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is a byte-blob cache with per-key expiry
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Health(ctx context.Context) error
	Close() error
}

// Config holds cache configuration
type Config struct {
	Provider        string // "memory" or "redis"
	TTL             time.Duration
	MaxKeys         int
	CleanupInterval time.Duration
	RedisURL        string
	PoolSize        int
}

// DefaultConfig returns a default cache configuration
func DefaultConfig() Config {
	return Config{
		Provider:        "memory",
		TTL:             10 * time.Minute,
		MaxKeys:         10000,
		CleanupInterval: time.Minute,
		PoolSize:        10,
	}
}

// NewStore creates a store for the configured provider
func NewStore(cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Provider) {
	case "redis":
		return NewRedisStore(cfg, logger)
	case "memory", "":
		logger.Info("Using in-memory cache")
		return NewMemoryStore(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

// ===============================
// MEMORY STORE
// ===============================

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store. A background sweeper drops expired keys until Close.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]memoryItem
	maxKeys int
	now     func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewMemoryStore creates a memory store and starts its sweeper
func NewMemoryStore(cfg Config) *MemoryStore {
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = DefaultConfig().MaxKeys
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultConfig().CleanupInterval
	}

	s := &MemoryStore{
		items:   make(map[string]memoryItem),
		maxKeys: cfg.MaxKeys,
		now:     time.Now,
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.sweep(cfg.CleanupInterval)
	return s
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(item.expiresAt) {
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[key]; !exists && len(s.items) >= s.maxKeys {
		s.evictSoonest()
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.items[key] = memoryItem{value: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Close stops the sweeper
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		<-s.done
	})
	return nil
}

// Len returns the number of stored keys, including expired ones not yet swept
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *MemoryStore) sweep(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCh:
			return
		}
	}
}

func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, key)
		}
	}
}

// evictSoonest drops the key closest to expiry. Caller holds the write lock.
func (s *MemoryStore) evictSoonest() {
	var (
		victim string
		soon   time.Time
	)
	for key, item := range s.items {
		if victim == "" || item.expiresAt.Before(soon) {
			victim, soon = key, item.expiresAt
		}
	}
	if victim != "" {
		delete(s.items, victim)
	}
}

// ===============================
// REDIS STORE
// ===============================

// RedisStore is a Store backed by a Redis server
type RedisStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection with a ping
func NewRedisStore(cfg Config, logger *zap.Logger) (*RedisStore, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required for the redis cache provider")
	}
	options, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		options.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis cache initialized",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)
	return &RedisStore{client: client, logger: logger}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// ===============================
// SNAPSHOTS
// ===============================

// Snapshot entities cached per user
const (
	EntityStreak  = "streak"
	EntityHistory = "history"
	EntityBadges  = "badges"
)

const keyPrefix = "thinkfirst"

// Key returns the namespaced key for an entity snapshot, e.g. thinkfirst:streak:42
func Key(entity string, userID int64) string {
	return keyPrefix + ":" + entity + ":" + strconv.FormatInt(userID, 10)
}

// Snapshots reads and writes JSON snapshots. Store failures are logged and treated as misses
// so the database stays the source of truth.
//
// Every Invalidate bumps a per-user generation. Readers take Generation before reading the
// database and pass it to Save, which drops the write if an invalidation happened in between,
// so a slow reader cannot cache a row that a concurrent writer already replaced.
type Snapshots struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
	gens   sync.Map // userID -> *generation
}

type generation struct {
	mu sync.Mutex
	n  uint64
}

// NewSnapshots wraps a store. A nil store disables caching.
func NewSnapshots(store Store, ttl time.Duration, logger *zap.Logger) *Snapshots {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	return &Snapshots{store: store, ttl: ttl, logger: logger}
}

// Load decodes the cached entity into dst and reports whether it was found
func (s *Snapshots) Load(ctx context.Context, entity string, userID int64, dst any) bool {
	if s == nil || s.store == nil {
		return false
	}
	key := Key(entity, userID)
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		_ = s.store.Delete(ctx, key)
		return false
	}
	return true
}

func (s *Snapshots) generation(userID int64) *generation {
	g, _ := s.gens.LoadOrStore(userID, &generation{})
	return g.(*generation)
}

// Generation returns the user's invalidation counter. Read it before loading from the database.
func (s *Snapshots) Generation(userID int64) uint64 {
	if s == nil || s.store == nil {
		return 0
	}
	g := s.generation(userID)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Save encodes value under the entity key if the user has not been invalidated since gen
// was read. It reports whether the snapshot was stored.
func (s *Snapshots) Save(ctx context.Context, entity string, userID int64, value any, gen uint64) bool {
	if s == nil || s.store == nil {
		return false
	}
	key := Key(entity, userID)
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("Cache encode failed", zap.String("key", key), zap.Error(err))
		return false
	}

	g := s.generation(userID)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.n != gen {
		s.logger.Debug("Skipping stale cache write", zap.String("key", key))
		return false
	}
	if err := s.store.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Invalidate drops every cached snapshot of a user
func (s *Snapshots) Invalidate(ctx context.Context, userID int64) {
	if s == nil || s.store == nil {
		return
	}
	g := s.generation(userID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++

	keys := []string{Key(EntityStreak, userID), Key(EntityHistory, userID), Key(EntityBadges, userID)}
	if err := s.store.Delete(ctx, keys...); err != nil {
		s.logger.Warn("Cache invalidation failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
