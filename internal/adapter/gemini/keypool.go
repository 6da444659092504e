package gemini

import (
	"strings"
	"sync"
)

// KeyPool 最多 6 个 API 密钥的轮换池。
// 配额类失败的 key 在当前配额窗口内不再使用，跨天后整体重置
type KeyPool struct {
	mu      sync.Mutex
	keys    []string
	current int
	failed  map[string]bool
}

// NewKeyPool 从配置收集到的密钥列表创建池子
func NewKeyPool(keys []string) *KeyPool {
	return &KeyPool{
		keys:   keys,
		failed: make(map[string]bool),
	}
}

// Current 当前活跃密钥；没有可用密钥时返回空串
func (p *KeyPool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	return p.keys[p.current]
}

// ReportFailure 标记当前密钥失败并轮换到下一个未失败的密钥。
// 全部失败时返回空串
func (p *KeyPool) ReportFailure(failedKey string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.keys) == 0 {
		return ""
	}

	p.failed[failedKey] = true

	start := p.current
	for {
		p.current = (p.current + 1) % len(p.keys)
		if !p.failed[p.keys[p.current]] {
			return p.keys[p.current]
		}
		if p.current == start {
			return ""
		}
	}
}

// ResetFailed 清空失败记录 (新配额窗口开始时调用)
func (p *KeyPool) ResetFailed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = make(map[string]bool)
}

// Stats 密钥池状态
func (p *KeyPool) Stats() (total, failed, available int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys), len(p.failed), len(p.keys) - len(p.failed)
}

// MaskedKeys 打码后的密钥列表，调试接口用
func (p *KeyPool) MaskedKeys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	masked := make([]string, 0, len(p.keys))
	for _, key := range p.keys {
		if len(key) <= 10 {
			masked = append(masked, strings.Repeat("*", len(key)))
			continue
		}
		masked = append(masked, key[:6]+strings.Repeat("*", len(key)-10)+key[len(key)-4:])
	}
	return masked
}
