// Package redis holds the access-token denylist. Access tokens are validated
// by signature and expiry alone, so logout pushes the token's jti here for
// the remainder of its TTL; the authz middleware checks the list on every
// request. Redis is shared across instances, so no node diverges.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Denylist struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*Denylist, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Denylist{client: client}, nil
}

func key(jti string) string {
	return fmt.Sprintf("token:denied:%s", jti)
}

// Deny marks the token id as revoked until its natural expiry.
func (d *Denylist) Deny(ctx context.Context, jti string, ttl time.Duration) error {
	const op = "storage.redis.Deny"

	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, key(jti), "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (d *Denylist) IsDenied(ctx context.Context, jti string) (bool, error) {
	const op = "storage.redis.IsDenied"

	n, err := d.client.Exists(ctx, key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

func (d *Denylist) Close() {
	d.client.Close()
}
