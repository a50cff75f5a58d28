package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// releaseScript deletes the lock key only when held by the caller.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// Lock is a single-holder lease backed by SET NX with a TTL.
type Lock struct {
	client *Client
	key    string
	token  string
}

// AcquireLock attempts to take the lease for key. Returns (nil, false, nil)
// when another holder owns it.
func (c *Client) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	token := uuid.New().String()

	ok, err := c.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %q: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	return &Lock{client: c, key: key, token: token}, true, nil
}

// Release frees the lease if this holder still owns it.
func (l *Lock) Release(ctx context.Context) {
	if _, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token); err != nil {
		l.client.logger.Warn("failed to release lock",
			zap.String("key", l.key),
			zap.Error(err),
		)
	}
}
