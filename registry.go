// Cancellation registry for RxLite
// 取消注册表：记录当前仍允许向下游投递的订阅令牌
package rxlite

import (
	"sync"

	"go.uber.org/atomic"
)

// Token 订阅令牌，每次subscribe生成一个，永不复用
type Token uint64

// Registry 存活订阅令牌的并发集合
//
// 令牌在集合中表示该订阅的投递仍被允许。移除是单调的：
// 被移除的令牌不会再被加入，重复移除是无操作。
type Registry struct {
	mu   sync.RWMutex
	live map[Token]struct{}
	next *atomic.Uint64
}

// NewRegistry 创建空的注册表
func NewRegistry() *Registry {
	return &Registry{
		live: make(map[Token]struct{}),
		next: atomic.NewUint64(0),
	}
}

// Register 生成新令牌并登记为存活
func (r *Registry) Register() Token {
	token := Token(r.next.Inc())

	r.mu.Lock()
	r.live[token] = struct{}{}
	r.mu.Unlock()

	return token
}

// Contains 检查令牌是否存活
func (r *Registry) Contains(token Token) bool {
	r.mu.RLock()
	_, ok := r.live[token]
	r.mu.RUnlock()
	return ok
}

// Remove 移除令牌，返回本次调用是否真正移除了它
func (r *Registry) Remove(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.live[token]; !ok {
		return false
	}
	delete(r.live, token)
	return true
}

// Len 返回存活令牌数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// defaultRegistry 进程级注册表，所有订阅共用
var defaultRegistry = NewRegistry()

// LiveSubscriptions 返回进程级注册表中存活订阅的数量
func LiveSubscriptions() int {
	return defaultRegistry.Len()
}
