package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

const keyPrefix = "kyc:submit:"

// ErrBusy is returned when the lock stays held past the wait budget.
var ErrBusy = fmt.Errorf("%w: submission already being processed", sentinel.ErrConflict)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a distributed per-user lock (SET NX PX) shared by every instance.
// The TTL bounds how long a crashed holder can block the user.
type Redis struct {
	client  redis.UniversalClient
	ttl     time.Duration
	maxWait time.Duration
	poll    time.Duration
}

type Option func(*Redis)

// WithWait sets how long Acquire keeps retrying and how often.
func WithWait(maxWait, poll time.Duration) Option {
	return func(g *Redis) {
		g.maxWait = maxWait
		g.poll = poll
	}
}

func NewRedis(client redis.UniversalClient, ttl time.Duration, opts ...Option) *Redis {
	g := &Redis{
		client:  client,
		ttl:     ttl,
		maxWait: ttl,
		poll:    50 * time.Millisecond,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Redis) Acquire(ctx context.Context, userID id.UserID) (func(), error) {
	key := keyPrefix + userID.String()
	token := uuid.NewString()

	policy := backoff.WithContext(
		withMaxElapsed(backoff.NewConstantBackOff(g.poll), g.maxWait),
		ctx,
	)
	err := backoff.Retry(func() error {
		ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("acquire submission lock: %w", err))
		}
		if !ok {
			return ErrBusy
		}
		return nil
	}, policy)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ErrBusy) {
			return nil, ctxErr
		}
		return nil, err
	}

	return func() {
		// release must run even when the request context is already done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, g.client, []string{key}, token).Err()
	}, nil
}

type maxElapsed struct {
	backoff.BackOff
	deadline time.Time
}

func withMaxElapsed(b backoff.BackOff, d time.Duration) backoff.BackOff {
	return &maxElapsed{BackOff: b, deadline: time.Now().Add(d)}
}

func (m *maxElapsed) NextBackOff() time.Duration {
	if time.Now().After(m.deadline) {
		return backoff.Stop
	}
	return m.BackOff.NextBackOff()
}
