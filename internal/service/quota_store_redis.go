package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const quotaKeyPrefix = "quota_window:"

// 返回 {verdict, count, retry_after_ms}，verdict 与 WindowVerdict 取值一致
var hitWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local spacing = tonumber(ARGV[4])

local start = redis.call('HGET', KEYS[1], 'start')
if not start or now - tonumber(start) >= window then
	redis.call('HSET', KEYS[1], 'start', ARGV[1], 'count', 1)
	redis.call('PEXPIRE', KEYS[1], window)
	return {0, 1, 0}
end
start = tonumber(start)

local count = tonumber(redis.call('HGET', KEYS[1], 'count') or '0')
if count >= max then
	return {2, count, start + window - now}
end
if count == 1 and now - start < spacing then
	return {1, count, start + spacing - now}
end

count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {0, count, 0}
`)

// RedisWindowStore 多实例共享的滚动窗口计数，计数在重启后保留
type RedisWindowStore struct {
	Redis *redis.Client
}

func NewRedisWindowStore(rdb *redis.Client) *RedisWindowStore {
	return &RedisWindowStore{Redis: rdb}
}

func (s *RedisWindowStore) Hit(ctx context.Context, key string, now time.Time, p WindowPolicy) (WindowResult, error) {
	res, err := hitWindowScript.Run(ctx, s.Redis, []string{quotaKeyPrefix + key},
		now.UnixMilli(),
		p.Window.Milliseconds(),
		p.Max,
		p.MinSpacing.Milliseconds(),
	).Slice()
	if err != nil {
		return WindowResult{}, fmt.Errorf("quota window script: %w", err)
	}
	if len(res) != 3 {
		return WindowResult{}, fmt.Errorf("quota window script: unexpected reply %v", res)
	}

	verdict, _ := res[0].(int64)
	count, _ := res[1].(int64)
	retryMs, _ := res[2].(int64)

	return WindowResult{
		Verdict:    WindowVerdict(verdict),
		Count:      int(count),
		RetryAfter: time.Duration(retryMs) * time.Millisecond,
	}, nil
}
