// Package fallback implements the request/reply side-channel to a
// coresident process, replacing the original
// ZeroMQ REQ socket with a Redis list-based request/reply pair grounded on
// the retrieved pack's own BRPop/LPush client.
package fallback

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the send-then-receive side channel used by handlers that
// forward collected payloads to a coresident process.
type Client interface {
	// Fallback sends msg and waits up to 100ms for a reply.
	Fallback(ctx context.Context, msg []byte) ([]byte, error)
}

const (
	requestListKey = "tcsp:fallback:req"
	replyKeyPrefix = "tcsp:fallback:reply:"
	defaultTimeout = 100 * time.Millisecond
)

// RedisClient implements Client against a coresident Redis instance: it
// LPUSHes a framed request (reply key + payload) onto a shared list and
// BRPOPs the per-call reply list, mirroring
// librescoot-bluetooth-service/pkg/redis/client.go's LPush/BRPop pair.
type RedisClient struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisClient dials addr and verifies connectivity with a Ping.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("fallback: connect to redis: %w", err)
	}
	return &RedisClient{rdb: rdb, timeout: defaultTimeout}, nil
}

var _ Client = (*RedisClient)(nil)

// Fallback pushes msg onto the shared request list tagged with a
// freshly-generated reply key, then blocks on that reply key for up to
// 100ms. A timeout is reported as an error, matching the original's
// `timeout(...).await??` double-fault (timeout or transport error).
func (c *RedisClient) Fallback(ctx context.Context, msg []byte) ([]byte, error) {
	replyKey := replyKeyPrefix + randomKey()
	envelope := append([]byte(replyKey+"|"), msg...)
	if err := c.rdb.LPush(ctx, requestListKey, envelope).Err(); err != nil {
		return nil, fmt.Errorf("fallback: lpush: %w", err)
	}

	result, err := c.rdb.BRPop(ctx, c.timeout, replyKey).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("fallback: reply timed out after %s", c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("fallback: brpop: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("fallback: unexpected brpop result: %v", result)
	}
	return []byte(result[1]), nil
}

// randomKey returns a 16-byte hex-encoded random token, unique enough to
// key one in-flight reply list per call without a coordination service.
func randomKey() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Close releases the underlying Redis connection pool.
func (c *RedisClient) Close() error { return c.rdb.Close() }

// Dummy is a Client that echoes msg back, used in tests and as a
// do-nothing stand-in when no coresident process is configured.
type Dummy struct{}

var _ Client = Dummy{}

// Fallback returns msg unchanged.
func (Dummy) Fallback(_ context.Context, msg []byte) ([]byte, error) { return msg, nil }
