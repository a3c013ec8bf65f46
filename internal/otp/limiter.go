package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTooManyAttempts is returned once an identity exceeds its attempt budget.
var ErrTooManyAttempts = errors.New("too many otp attempts")

const keyPrefix = "accounts:otp:attempts:"

// Limiter counts OTP verification attempts per identity in a fixed Redis
// window.
type Limiter struct {
	rdb         redis.Cmdable
	maxAttempts int
	window      time.Duration
}

// NewLimiter allows maxAttempts verifications per identity within window.
func NewLimiter(rdb redis.Cmdable, maxAttempts int, window time.Duration) *Limiter {
	return &Limiter{rdb: rdb, maxAttempts: maxAttempts, window: window}
}

// Allow records one attempt for identity and returns ErrTooManyAttempts when
// the budget for the current window is spent.
func (l *Limiter) Allow(ctx context.Context, identity string) error {
	key := keyPrefix + identity

	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("count otp attempt: %w", err)
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return fmt.Errorf("set otp attempt window: %w", err)
		}
	}

	if count > int64(l.maxAttempts) {
		return ErrTooManyAttempts
	}
	return nil
}

// Reset clears the attempt counter for identity after a successful check.
func (l *Limiter) Reset(ctx context.Context, identity string) error {
	if err := l.rdb.Del(ctx, keyPrefix+identity).Err(); err != nil {
		return fmt.Errorf("reset otp attempts: %w", err)
	}
	return nil
}
