// Package memory persists conversation history between turns.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

const (
	defaultKeyPrefix = "bitebot:history:"
	defaultTTL       = 24 * time.Hour
)

// Option customizes a RedisCheckpointer.
type Option func(*RedisCheckpointer)

func WithKeyPrefix(prefix string) Option {
	return func(s *RedisCheckpointer) {
		if trimmed := strings.TrimSpace(prefix); trimmed != "" {
			s.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *RedisCheckpointer) {
		s.ttl = ttl
	}
}

type RedisConfig struct {
	URL       string        `envconfig:"URL"`
	KeyPrefix string        `envconfig:"KEY_PREFIX" split_words:"true" default:"bitebot:history:"`
	TTL       time.Duration `envconfig:"TTL" default:"24h"`
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Client opens a go-redis client from the configured URL and pings it.
func (c RedisConfig) Client(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(c.URL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// kv is the subset of redis.Cmdable the checkpointer needs.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCheckpointer stores each thread's messages as one JSON value.
type RedisCheckpointer struct {
	client    kv
	keyPrefix string
	ttl       time.Duration
}

var _ contractx.Checkpointer = (*RedisCheckpointer)(nil)

func NewRedisCheckpointer(client kv, opts ...Option) (*RedisCheckpointer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	s := &RedisCheckpointer{client: client, keyPrefix: defaultKeyPrefix, ttl: defaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.ttl < 0 {
		return nil, errors.New("ttl must be >= 0")
	}
	return s, nil
}

func (s *RedisCheckpointer) Load(ctx context.Context, threadID string) ([]*schema.Message, error) {
	key, err := s.key(threadID)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	var msgs []*schema.Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return msgs, nil
}

// Save overwrites the thread's history. A zero TTL keeps it forever.
func (s *RedisCheckpointer) Save(ctx context.Context, threadID string, msgs []*schema.Message) error {
	key, err := s.key(threadID)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

func (s *RedisCheckpointer) Delete(ctx context.Context, threadID string) error {
	key, err := s.key(threadID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

func (s *RedisCheckpointer) key(threadID string) (string, error) {
	if strings.TrimSpace(threadID) == "" {
		return "", contractx.ErrInvalidSession
	}
	return s.keyPrefix + threadID, nil
}

// InMemory keeps history in process memory.
type InMemory struct {
	mu      sync.RWMutex
	threads map[string][]*schema.Message
}

var _ contractx.Checkpointer = (*InMemory)(nil)

func NewInMemory() *InMemory {
	return &InMemory{threads: make(map[string][]*schema.Message)}
}

func (m *InMemory) Load(_ context.Context, threadID string) ([]*schema.Message, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, contractx.ErrInvalidSession
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*schema.Message(nil), m.threads[threadID]...), nil
}

func (m *InMemory) Save(_ context.Context, threadID string, msgs []*schema.Message) error {
	if strings.TrimSpace(threadID) == "" {
		return contractx.ErrInvalidSession
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = append([]*schema.Message(nil), msgs...)
	return nil
}

func (m *InMemory) Delete(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

// Trim keeps at most the last n messages. The kept window never starts with
// a tool result whose assistant call was cut off.
func Trim(msgs []*schema.Message, n int) []*schema.Message {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	out := msgs[len(msgs)-n:]
	for len(out) > 0 && out[0].Role == schema.Tool {
		out = out[1:]
	}
	return out
}
