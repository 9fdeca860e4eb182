// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/authcore/internal/stream"
)

type fakeAdder struct {
	args []*redis.XAddArgs
	err  error
}

func (f *fakeAdder) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.args = append(f.args, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func TestProducer_Publish(t *testing.T) {
	adder := &fakeAdder{}
	p := stream.NewProducer(adder, "authcore:test", 0)

	id, err := p.Publish(context.Background(), map[string]any{"type": "ping"})
	require.NoError(t, err)
	assert.Equal(t, "1700000000000-0", id)

	require.Len(t, adder.args, 1)
	assert.Equal(t, "authcore:test", adder.args[0].Stream)
	assert.Equal(t, stream.DefaultMaxLen, adder.args[0].MaxLen)
	assert.True(t, adder.args[0].Approx)
	assert.Equal(t, map[string]any{"type": "ping"}, adder.args[0].Values)
}

func TestProducer_PublishError(t *testing.T) {
	boom := errors.New("READONLY You can't write against a read only replica")
	p := stream.NewProducer(&fakeAdder{err: boom}, "authcore:test", 10)

	_, err := p.Publish(context.Background(), map[string]any{"type": "ping"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "authcore:test", p.Stream())
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := stream.Connect(context.Background(), "redis://:badport:x/0")
	require.Error(t, err)
}
