package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Window 滚动窗口内的请求预算。
// 计数器在窗口到期后整体清零 (不是逐请求滑动)，和来源系统的小时计数器行为一致。
type Window struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	count     int
	lastReset time.Time
	nowFunc   func() time.Time
}

// NewWindow max 次请求 / window 时长
func NewWindow(max int, window time.Duration) *Window {
	return &Window{
		max:     max,
		window:  window,
		nowFunc: time.Now,
	}
}

// SetNowFunc 注入时钟，测试用
func (w *Window) SetNowFunc(fn func() time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nowFunc = fn
}

func (w *Window) resetIfExpired() {
	now := w.nowFunc()
	if w.lastReset.IsZero() {
		w.lastReset = now
		return
	}
	if now.Sub(w.lastReset) > w.window {
		w.count = 0
		w.lastReset = now
	}
}

// Allow 本地判定：预算内返回 true 并计数，超限返回 false，不发起任何网络请求
func (w *Window) Allow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetIfExpired()
	if w.count >= w.max {
		return false
	}
	w.count++
	return true
}

// Remaining 当前窗口的剩余预算
func (w *Window) Remaining() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetIfExpired()
	if r := w.max - w.count; r > 0 {
		return r
	}
	return 0
}

// Used 当前窗口已用次数
func (w *Window) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetIfExpired()
	return w.count
}

// Pacer 每次请求前的固定最小间隔，代替散落在业务里的 sleep
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer interval 为相邻请求的最小间隔
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait 阻塞到下一个可用时刻；context 取消时返回相应错误
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
