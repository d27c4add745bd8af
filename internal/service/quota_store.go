package service

import (
	"context"
	"sync"
	"time"
)

type WindowVerdict int

const (
	WindowAllowed WindowVerdict = iota
	WindowThrottled
	WindowExhausted
)

// WindowPolicy 滚动窗口配额：窗口从第一次请求开始计时
type WindowPolicy struct {
	Max        int
	Window     time.Duration
	MinSpacing time.Duration
}

type WindowResult struct {
	Verdict    WindowVerdict
	Count      int
	RetryAfter time.Duration
}

// WindowStore 滚动窗口计数存储，被拒绝的请求不计数
type WindowStore interface {
	Hit(ctx context.Context, key string, now time.Time, p WindowPolicy) (WindowResult, error)
}

const windowSweepInterval = time.Minute

type windowState struct {
	start time.Time
	count int
}

// MemoryWindowStore 进程内计数，重启即丢失，不在多实例间共享
type MemoryWindowStore struct {
	mu        sync.Mutex
	windows   map[string]*windowState
	lastSweep time.Time
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]*windowState)}
}

func (m *MemoryWindowStore) Hit(_ context.Context, key string, now time.Time, p WindowPolicy) (WindowResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Sub(m.lastSweep) >= windowSweepInterval {
		m.pruneLocked(now, p.Window)
		m.lastSweep = now
	}

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= p.Window {
		m.windows[key] = &windowState{start: now, count: 1}
		return WindowResult{Verdict: WindowAllowed, Count: 1}, nil
	}

	if w.count >= p.Max {
		return WindowResult{
			Verdict:    WindowExhausted,
			Count:      w.count,
			RetryAfter: w.start.Add(p.Window).Sub(now),
		}, nil
	}

	// 只约束窗口内第一次与第二次请求的间隔
	if w.count == 1 && now.Sub(w.start) < p.MinSpacing {
		return WindowResult{
			Verdict:    WindowThrottled,
			Count:      w.count,
			RetryAfter: w.start.Add(p.MinSpacing).Sub(now),
		}, nil
	}

	w.count++
	return WindowResult{Verdict: WindowAllowed, Count: w.count}, nil
}

func (m *MemoryWindowStore) pruneLocked(now time.Time, window time.Duration) {
	for k, w := range m.windows {
		if now.Sub(w.start) >= window {
			delete(m.windows, k)
		}
	}
}

// Len 当前跟踪的窗口数量
func (m *MemoryWindowStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
