package audit

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ListPusher is the subset of redis.Cmdable used by RedisSink.
type ListPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisSink pushes JSON entries onto a list.
type RedisSink struct {
	client ListPusher
	key    string
}

func NewRedisSink(client ListPusher, key string) *RedisSink {
	return &RedisSink{client: client, key: key}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return errors.WithMessage(err, "encoding audit entry")
	}
	return errors.WithMessagef(s.client.RPush(ctx, s.key, payload).Err(), "pushing to %s", s.key)
}
