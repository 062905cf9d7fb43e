package dedupe

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arxon-dev/topicperf/pkg/logger"
)

const (
	defaultRedisPrefix = "topicperf:seen:"
	defaultRedisTTL    = 24 * time.Hour
)

// RedisDeduper shares seen ids between processes with SET NX. Redis errors
// fail open: the event is treated as new.
type RedisDeduper struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    logger.Logger
}

// NewRedisDeduper returns a Deduper backed by client.
func NewRedisDeduper(client redis.UniversalClient, opts ...RedisOption) *RedisDeduper {
	d := &RedisDeduper{
		client: client,
		prefix: defaultRedisPrefix,
		ttl:    defaultRedisTTL,
		log:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *RedisDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	ok, err := d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
	if err != nil {
		d.log.Warn(ctx, "dedupe check failed, accepting event", logger.String("id", id), logger.Error(err))
		return false
	}
	return !ok
}

func (d *RedisDeduper) Unrecord(ctx context.Context, id string) {
	if err := d.client.Del(ctx, d.prefix+id).Err(); err != nil {
		d.log.Warn(ctx, "dedupe unrecord failed", logger.String("id", id), logger.Error(err))
	}
}

// Size counts remembered ids. It scans the keyspace and is meant for stats
// endpoints, not hot paths.
func (d *RedisDeduper) Size() int64 {
	ctx := context.Background()
	var (
		n      int64
		cursor uint64
	)
	for {
		keys, next, err := d.client.Scan(ctx, cursor, d.prefix+"*", 1000).Result()
		if err != nil {
			return n
		}
		n += int64(len(keys))
		if next == 0 {
			return n
		}
		cursor = next
	}
}
