package repository

import (
	"context"
	"encoding/json"
	"errors"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/util"
	"strings"

	"github.com/go-redis/redis/v8"
)

const problemCacheKeyPrefix = "problem_cache:"

var ErrCacheMiss = errors.New("problem cache miss")

// ProblemCacheRepository 每个 (topic, difficulty) 一个 Redis 列表，元素为 CachedProblem 的 JSON
type ProblemCacheRepository struct {
	Redis     *redis.Client
	MaxPerKey int64
}

func NewProblemCacheRepository(rdb *redis.Client, maxPerKey int64) *ProblemCacheRepository {
	return &ProblemCacheRepository{Redis: rdb, MaxPerKey: maxPerKey}
}

func problemCacheKey(topic, difficulty string) string {
	return problemCacheKeyPrefix +
		strings.ToLower(strings.TrimSpace(topic)) + ":" +
		strings.ToLower(strings.TrimSpace(difficulty))
}

// Random 在匹配的全部记录中均匀随机取一条
func (r *ProblemCacheRepository) Random(ctx context.Context, topic, difficulty string, rng util.Rand) (*model.CachedProblem, error) {
	key := problemCacheKey(topic, difficulty)

	n, err := r.Redis.LLen(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrCacheMiss
	}

	raw, err := r.Redis.LIndex(ctx, key, int64(rng.IntN(int(n)))).Result()
	if err == redis.Nil {
		// 列表在 LLEN 与 LINDEX 之间被裁剪
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var p model.CachedProblem
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProblemCacheRepository) Save(ctx context.Context, p *model.CachedProblem) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	key := problemCacheKey(p.Topic, p.Difficulty)
	pipe := r.Redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	if r.MaxPerKey > 0 {
		pipe.LTrim(ctx, key, -r.MaxPerKey, -1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *ProblemCacheRepository) Ping(ctx context.Context) error {
	return r.Redis.Ping(ctx).Err()
}
