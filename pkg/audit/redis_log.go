package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const entryField = "entry"

// RedisLogConfig configures the stream-backed trail.
type RedisLogConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

// RedisLog appends entries to a capped Redis stream.
type RedisLog struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisLog creates a stream-backed audit log.
func NewRedisLog(cfg RedisLogConfig) (*RedisLog, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		stream = "gallery:moderation"
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisLog{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Record appends e to the stream, trimming old entries approximately.
func (l *RedisLog) Record(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	if err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: l.stream,
		MaxLen: l.maxLen,
		Approx: true,
		Values: map[string]any{
			"photo_id": e.PhotoID,
			"overall":  string(e.Overall),
			entryField: string(payload),
		},
	}).Err(); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *RedisLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	msgs, err := l.client.XRevRangeN(ctx, l.stream, "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read audit entries: %w", err)
	}
	out := make([]Entry, 0, len(msgs))
	for _, msg := range msgs {
		raw, _ := msg.Values[entryField].(string)
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases the redis connection pool.
func (l *RedisLog) Close() error {
	return l.client.Close()
}
