package gemini

import (
	"sync"
	"time"

	"project-prospector/internal/port"
)

const (
	defaultMaxPerMinute = 8   // 保守设置
	defaultMaxPerDay    = 100 // 保守的日上限
)

// Quota 两个独立计数器：分钟配额按滚动 60s 重置，日配额按自然日重置。
// 超限时本地拒绝，不发任何网络请求
type Quota struct {
	mu sync.Mutex

	maxPerMinute int
	maxPerDay    int

	minuteCount     int
	lastMinuteReset time.Time

	dailyCount int
	lastDay    int

	nowFunc func() time.Time
}

// NewQuota 默认 8次/分钟、100次/天
func NewQuota() *Quota {
	return &Quota{
		maxPerMinute: defaultMaxPerMinute,
		maxPerDay:    defaultMaxPerDay,
		nowFunc:      time.Now,
	}
}

// SetNowFunc 注入时钟，测试用
func (q *Quota) SetNowFunc(fn func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nowFunc = fn
}

// Allow 两个配额都有余量时计数并放行。
// newDay 返回 true 表示刚跨天，调用方可借机重置失败的 key
func (q *Quota) Allow() (ok bool, newDay bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.nowFunc()

	// 日计数器：自然日变化即清零
	if day := now.YearDay() + now.Year()*1000; day != q.lastDay {
		if q.lastDay != 0 {
			newDay = true
		}
		q.dailyCount = 0
		q.lastDay = day
	}

	if q.dailyCount >= q.maxPerDay {
		return false, newDay
	}

	// 分钟计数器：距上次重置超过 60s 即清零
	if q.lastMinuteReset.IsZero() {
		q.lastMinuteReset = now
	} else if now.Sub(q.lastMinuteReset) >= time.Minute {
		q.minuteCount = 0
		q.lastMinuteReset = now
	}

	if q.minuteCount >= q.maxPerMinute {
		return false, newDay
	}

	q.minuteCount++
	q.dailyCount++
	return true, newDay
}

// Stats 当前使用量快照
func (q *Quota) Stats() port.UsageStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return port.UsageStats{
		MinuteRequests:    q.minuteCount,
		MaxMinuteRequests: q.maxPerMinute,
		DailyRequests:     q.dailyCount,
		MaxDailyRequests:  q.maxPerDay,
	}
}
