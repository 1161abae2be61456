package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LoginAttempts counts failed logins per email inside a sliding lockout window.
type LoginAttempts struct {
	rdb    *redis.Client
	window time.Duration
}

func NewLoginAttempts(rdb *redis.Client, window time.Duration) *LoginAttempts {
	return &LoginAttempts{rdb: rdb, window: window}
}

func loginKey(email string) string {
	return "login:failed:" + strings.ToLower(email)
}

func (l *LoginAttempts) Failures(ctx context.Context, email string) (int, error) {
	n, err := l.rdb.Get(ctx, loginKey(email)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read login attempts: %w", err)
	}
	return n, nil
}

// RecordFailure increments the counter and restarts the window.
func (l *LoginAttempts) RecordFailure(ctx context.Context, email string) (int, error) {
	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, loginKey(email))
	pipe.Expire(ctx, loginKey(email), l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to record login attempt: %w", err)
	}
	return int(incr.Val()), nil
}

func (l *LoginAttempts) Reset(ctx context.Context, email string) error {
	if err := l.rdb.Del(ctx, loginKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

// NoopLoginAttempts is used when Redis is not configured.
type NoopLoginAttempts struct{}

func (NoopLoginAttempts) Failures(context.Context, string) (int, error)      { return 0, nil }
func (NoopLoginAttempts) RecordFailure(context.Context, string) (int, error) { return 0, nil }
func (NoopLoginAttempts) Reset(context.Context, string) error                { return nil }
