package reporter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultStream = "tally"
	redisTimeout  = 5 * time.Second
)

// RedisConfig describes a Redis stream sink.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"` //nolint:gosec // user-provided credential field
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	// MaxLen caps the stream length; 0 keeps everything.
	MaxLen int64 `yaml:"max-len"`
}

// RedisSink appends each record to a Redis stream as a single "record" field.
type RedisSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisSink connects lazily; the first write reports connection errors.
func NewRedisSink(c RedisConfig) *RedisSink {
	stream := c.Stream
	if stream == "" {
		stream = defaultStream
	}

	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}),
		stream: stream,
		maxLen: c.MaxLen,
	}
}

// Write adds p, one encoded record, to the stream.
func (s *RedisSink) Write(p []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Values: map[string]any{"record": string(bytes.TrimRight(p, "\n"))},
	}).Err()
	if err != nil {
		return 0, fmt.Errorf("xadd %s: %w", s.stream, err)
	}

	return len(p), nil
}

// Close releases the connection pool.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
