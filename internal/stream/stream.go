// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

// Package stream publishes authcore messages to Redis streams.
package stream

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultMaxLen bounds each stream. Trimming is approximate.
const DefaultMaxLen int64 = 100_000

// Adder is the subset of *redis.Client used to publish.
type Adder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// Connect creates a Redis client from a redis:// URL or a bare host:port
// and checks that the server answers.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, oops.Code("STREAM_CONFIG_INVALID").With("operation", "parse redis url").Wrap(err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("STREAM_CONNECT_FAILED").With("operation", "ping redis").Wrap(err)
	}
	return client, nil
}

// Producer appends entries to one stream.
type Producer struct {
	client Adder
	stream string
	maxLen int64
}

// NewProducer creates a Producer for stream. maxLen <= 0 uses DefaultMaxLen.
func NewProducer(client Adder, stream string, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}
	return &Producer{client: client, stream: stream, maxLen: maxLen}
}

// Stream returns the stream key.
func (p *Producer) Stream() string { return p.stream }

// Publish appends values and returns the entry ID assigned by Redis.
func (p *Producer) Publish(ctx context.Context, values map[string]any) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", oops.With("operation", "xadd").With("stream", p.stream).Wrap(err)
	}
	return id, nil
}
