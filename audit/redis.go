package audit

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis mirror defaults.
const (
	DefaultRedisKey     = "forge:audit:rejections"
	DefaultRedisChannel = "forge:audit:live"
	DefaultRedisMaxLen  = 1000
)

// RedisOptions configures the Redis mirror.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// TLS configuration for secure connections.
	TLS *tls.Config

	// Key is the list holding recent entries, newest first.
	Key string

	// Channel receives every entry as it is recorded.
	Channel string

	// MaxLen caps the list length.
	MaxLen int64

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisMirror keeps a capped list of recent audit entries in Redis and
// publishes each one on a channel so operators can watch rejections live.
// It is a secondary recorder; the JSONL file remains the durable record.
type RedisMirror struct {
	client  *redis.Client
	key     string
	channel string
	maxLen  int64
}

// NewRedisMirror connects to Redis and verifies the connection.
func NewRedisMirror(opts RedisOptions) (*RedisMirror, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = DefaultRedisKey
	}
	if opts.Channel == "" {
		opts.Channel = DefaultRedisChannel
	}
	if opts.MaxLen <= 0 {
		opts.MaxLen = DefaultRedisMaxLen
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 5 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisMirror{
		client:  client,
		key:     opts.Key,
		channel: opts.Channel,
		maxLen:  opts.MaxLen,
	}, nil
}

// Record pushes e onto the recent-entries list, trims the list, and publishes
// e on the live channel in one pipeline.
func (m *RedisMirror) Record(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	pipe := m.client.TxPipeline()
	pipe.LPush(ctx, m.key, data)
	pipe.LTrim(ctx, m.key, 0, m.maxLen-1)
	pipe.Publish(ctx, m.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mirror audit entry to %s: %w", m.key, err)
	}
	return nil
}

// Recent returns up to n of the newest mirrored entries, newest first.
func (m *RedisMirror) Recent(ctx context.Context, n int64) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := m.client.LRange(ctx, m.key, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", m.key, err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Subscribe streams entries published after the subscription is confirmed.
// The channel closes when ctx ends.
func (m *RedisMirror) Subscribe(ctx context.Context) (<-chan Entry, error) {
	pubsub := m.client.Subscribe(ctx, m.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", m.channel, err)
	}

	out := make(chan Entry)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e Entry
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks that Redis is reachable.
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
