package common

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// RetryableFunc 可重试的操作，返回 error 表示本次失败
type RetryableFunc func() error

// RetryConfig 重试行为配置
type RetryConfig struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

// RetryOption 重试配置的函数式选项
type RetryOption func(*RetryConfig)

// WithMaxRetries 最大重试次数，默认 3
func WithMaxRetries(n int) RetryOption {
	return func(c *RetryConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithInitialDelay 首次重试前的等待时间，默认 1s
func WithInitialDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) {
		if d > 0 {
			c.initialDelay = d
		}
	}
}

// WithMaxDelay 重试间隔上限，默认 30s
func WithMaxDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithMultiplier 退避倍数，默认 2.0
func WithMultiplier(m float64) RetryOption {
	return func(c *RetryConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// Do 带指数退避地执行 fn，尊重 context 取消。
// 限流类错误不重试，等配额窗口恢复
func Do(ctx context.Context, fn RetryableFunc, opts ...RetryOption) error {
	if fn == nil {
		return errors.New("retry: function cannot be nil")
	}

	cfg := &RetryConfig{
		maxRetries:   3,
		initialDelay: 1 * time.Second,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var lastErr error
	if err := fn(); err == nil {
		return nil
	} else {
		lastErr = err
	}

	for attempt := 1; attempt <= cfg.maxRetries; attempt++ {
		if IsRateLimit(lastErr) {
			return lastErr
		}

		timer := time.NewTimer(backoffDelay(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted (attempt %d/%d): %w", attempt, cfg.maxRetries, ctx.Err())
		case <-timer.C:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", cfg.maxRetries+1, lastErr)
}

func backoffDelay(attempt int, cfg *RetryConfig) time.Duration {
	delay := float64(cfg.initialDelay) * math.Pow(cfg.multiplier, float64(attempt-1))
	if time.Duration(delay) > cfg.maxDelay {
		return cfg.maxDelay
	}
	return time.Duration(delay)
}
