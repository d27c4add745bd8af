package service

import (
	"context"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/repository"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/database"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "arena.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// sqlite 单写者，串行化连接避免 database is locked
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

type leaderboardFixture struct {
	db          *gorm.DB
	quota       *QuotaService
	leaderboard *LeaderboardService
}

func newLeaderboardFixture(t *testing.T) *leaderboardFixture {
	db := newSQLiteDB(t)
	quota := NewQuotaService(NewMemoryWindowStore(), repository.NewDailyPlayRepository(db), testQuotaConfig)
	lb := NewLeaderboardService(
		repository.NewLeaderboardRepository(db),
		repository.NewTxManager(db),
		quota,
		testLeaderboardConfig,
	)
	return &leaderboardFixture{db: db, quota: quota, leaderboard: lb}
}

func (f *leaderboardFixture) rows(t *testing.T, username, difficulty string) []model.LeaderboardEntry {
	var entries []model.LeaderboardEntry
	require.NoError(t, f.db.Where("username = ? AND difficulty = ?", username, difficulty).Find(&entries).Error)
	return entries
}

func TestLeaderboard_SequentialSubmissionsAccumulate(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()

	for _, score := range []int{5, 10, 15} {
		require.NoError(t, f.leaderboard.Submit(ctx, Submission{Username: "ada", Score: score, Difficulty: "hard"}))
	}

	entries := f.rows(t, "ada", "hard")
	require.Len(t, entries, 1)
	assert.Equal(t, 30, entries[0].Score)
	assert.Equal(t, 3, entries[0].GamesPlayed)
}

func TestLeaderboard_FragmentedRowsCollapse(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, score := range []int{3, 4} {
		require.NoError(t, f.db.Create(&model.LeaderboardEntry{
			Username:    "grace",
			Difficulty:  "medium",
			Score:       score,
			GamesPlayed: 1,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}).Error)
	}

	// 碎片行汇总后排名已经正确
	top, err := f.leaderboard.Top(ctx)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, model.LeaderboardRow{Username: "grace", Score: 7, GamesPlayed: 2}, top[0])

	require.NoError(t, f.leaderboard.Submit(ctx, Submission{Username: "grace", Score: 2, Difficulty: "medium"}))

	entries := f.rows(t, "grace", "medium")
	require.Len(t, entries, 1)
	assert.Equal(t, 9, entries[0].Score)
	assert.Equal(t, 3, entries[0].GamesPlayed)
	assert.True(t, entries[0].CreatedAt.Equal(base), "the earliest row is kept")
}

func TestLeaderboard_ConcurrentSubmissionsProduceOneRow(t *testing.T) {
	f := newLeaderboardFixture(t)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.leaderboard.Submit(context.Background(), Submission{Username: "linus", Score: 2, Difficulty: "easy"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	entries := f.rows(t, "linus", "easy")
	require.Len(t, entries, 1)
	assert.Equal(t, 2*workers, entries[0].Score)
	assert.Equal(t, workers, entries[0].GamesPlayed)
}

func TestLeaderboard_TopAggregatesAcrossDifficulties(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()

	subs := []Submission{
		{Username: "ada", Score: 5, Difficulty: "easy"},
		{Username: "ada", Score: 20, Difficulty: "hard"},
		{Username: "bob", Score: 10, Difficulty: "medium"},
		{Username: "bob", Score: 10, Difficulty: "medium"},
		{Username: "cy", Score: 20, Difficulty: "hard"},
	}
	for _, s := range subs {
		require.NoError(t, f.leaderboard.Submit(ctx, s))
	}

	top, err := f.leaderboard.Top(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.LeaderboardRow{
		{Username: "ada", Score: 25, GamesPlayed: 2},
		{Username: "bob", Score: 20, GamesPlayed: 2},
		{Username: "cy", Score: 20, GamesPlayed: 1},
	}, top)
}

func TestLeaderboard_DailySubmittedOnce(t *testing.T) {
	f := newLeaderboardFixture(t)
	ctx := context.Background()
	const ip, seed = "198.51.100.4", "2026-03-01"

	d, err := f.quota.Admit(ctx, ip, true, seed)
	require.NoError(t, err)
	require.True(t, d.Allowed())

	sub := Submission{Username: "ada", Score: 4, Difficulty: "easy", Identity: ip, DaySeed: seed}
	require.NoError(t, f.leaderboard.Submit(ctx, sub))
	require.ErrorIs(t, f.leaderboard.Submit(ctx, sub), util.ErrDuplicateDailySubmission)

	entries := f.rows(t, "ada", "easy")
	require.Len(t, entries, 1)
	assert.Equal(t, 4, entries[0].Score, "the rejected duplicate must not be merged")

	// 已提交的登记不会被撤销
	require.NoError(t, f.quota.ReleaseDaily(ctx, ip, seed))
	d, err = f.quota.Admit(ctx, ip, true, seed)
	require.NoError(t, err)
	assert.Equal(t, AdmissionDeniedDaily, d.Outcome)
}
