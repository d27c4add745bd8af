package repository

import (
	"context"
	"fmt"
	"math_arena_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemCacheRepository_SaveAndRandom(t *testing.T) {
	rdb, mr := newTestRedis(t)
	repo := NewProblemCacheRepository(rdb, 100)
	ctx := context.Background()

	_, err := repo.Random(ctx, "Fractions", "Easy", fixedRand(0))
	require.ErrorIs(t, err, ErrCacheMiss)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, &model.CachedProblem{
			Topic:          "Fractions",
			Difficulty:     "Easy",
			RawText:        fmt.Sprintf("problem %d", i),
			SourceIdentity: "10.0.0.1",
			CreatedAt:      time.Date(2026, 3, 1, 9, i, 0, 0, time.UTC),
		}))
	}
	assert.True(t, mr.Exists("problem_cache:fractions:easy"))

	// 键大小写不敏感
	p, err := repo.Random(ctx, " fractions ", "EASY", fixedRand(1))
	require.NoError(t, err)
	assert.Equal(t, "problem 1", p.RawText)
	assert.Equal(t, "10.0.0.1", p.SourceIdentity)

	_, err = repo.Random(ctx, "Fractions", "Hard", fixedRand(0))
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProblemCacheRepository_TrimsToMaxPerKey(t *testing.T) {
	rdb, mr := newTestRedis(t)
	repo := NewProblemCacheRepository(rdb, 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, &model.CachedProblem{Topic: "t", Difficulty: "d", RawText: fmt.Sprintf("p%d", i)}))
	}

	items, err := mr.List("problem_cache:t:d")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	p, err := repo.Random(ctx, "t", "d", fixedRand(0))
	require.NoError(t, err)
	assert.Equal(t, "p2", p.RawText, "oldest entries are evicted first")
}

func TestProblemCacheRepository_Unavailable(t *testing.T) {
	rdb, mr := newTestRedis(t)
	repo := NewProblemCacheRepository(rdb, 3)
	mr.Close()

	_, err := repo.Random(context.Background(), "t", "d", fixedRand(0))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, repo.Ping(context.Background()))
}
