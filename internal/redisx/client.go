package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// SeenEvent marks an event id as processed and reports whether it had been
// seen before. SetNX keeps check and mark one round trip.
func SeenEvent(ctx context.Context, rdb *redis.Client, consumer, eventID string) (bool, error) {
	ok, err := rdb.SetNX(ctx, DedupKey(consumer, eventID), "1", TTLDedup).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}
