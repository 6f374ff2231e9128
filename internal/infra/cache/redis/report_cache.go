package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	domain "github.com/bryanwahyu/kinetic-intake/internal/domain/reports"
)

const keyPrefix = "report:"

// Options koneksi Redis
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewClient builds the client and pings it.
func NewClient(ctx context.Context, opts Options) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		cli.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return cli, nil
}

// ReportCache is a read-through cache of stored reports keyed by id.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Get returns (nil, nil) on a miss.
func (c *ReportCache) Get(ctx context.Context, id domain.ID) (*domain.Report, error) {
	val, err := c.client.Get(ctx, keyPrefix+string(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var r domain.Report
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, fmt.Errorf("decode cached report %s: %w", id, err)
	}
	return &r, nil
}

func (c *ReportCache) Set(ctx context.Context, r *domain.Report) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+string(r.ID), b, c.ttl).Err()
}
