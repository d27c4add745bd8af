package service

import (
	"context"
	"errors"
	"math_arena_backend/internal/config"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/util"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testLeaderboardConfig = config.LeaderboardConfig{
	MaxScores:       map[string]int{"easy": 5, "medium": 10, "hard": 20},
	DefaultMaxScore: 100,
	TopLimit:        100,
}

func TestLeaderboardService_MaxScore(t *testing.T) {
	svc := NewLeaderboardService(&FakeLeaderboardStore{}, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)

	tests := []struct {
		difficulty string
		want       int
	}{
		{"easy", 5},
		{"Easy", 5},
		{"MEDIUM", 10},
		{"hard", 20},
		{"Olympiad", 100},
	}
	for _, tt := range tests {
		t.Run(tt.difficulty, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.MaxScore(tt.difficulty))
		})
	}
}

func TestLeaderboardService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		sub     Submission
		wantErr error
	}{
		{name: "missing username", sub: Submission{Score: 3, Difficulty: "easy"}, wantErr: util.ErrValidation},
		{name: "blank username", sub: Submission{Username: "  ", Score: 3, Difficulty: "easy"}, wantErr: util.ErrValidation},
		{name: "missing difficulty", sub: Submission{Username: "ada", Score: 3}, wantErr: util.ErrValidation},
		{name: "zero score", sub: Submission{Username: "ada", Score: 0, Difficulty: "easy"}, wantErr: util.ErrInvalidScore},
		{name: "negative score", sub: Submission{Username: "ada", Score: -4, Difficulty: "easy"}, wantErr: util.ErrInvalidScore},
		{name: "above easy cap", sub: Submission{Username: "ada", Score: 25, Difficulty: "Easy"}, wantErr: util.ErrInvalidScore},
		{name: "above default cap", sub: Submission{Username: "ada", Score: 101, Difficulty: "Olympiad"}, wantErr: util.ErrInvalidScore},
		{name: "username too long", sub: Submission{Username: strings.Repeat("a", 101), Score: 3, Difficulty: "easy"}, wantErr: util.ErrValidation},
		{name: "multibyte username too long", sub: Submission{Username: strings.Repeat("数", 101), Score: 3, Difficulty: "easy"}, wantErr: util.ErrValidation},
		{name: "difficulty too long", sub: Submission{Username: "ada", Score: 3, Difficulty: strings.Repeat("x", 51)}, wantErr: util.ErrValidation},
		{name: "problem seed too long", sub: Submission{Username: "ada", Score: 3, Difficulty: "easy", DaySeed: strings.Repeat("9", 33)}, wantErr: util.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &FakeLeaderboardStore{}
			tx := &FakeTx{}
			svc := NewLeaderboardService(store, tx, &FakeDailyValidator{}, testLeaderboardConfig)

			err := svc.Submit(context.Background(), tt.sub)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, store.Trace(), "rejected submissions never reach the store")
			assert.Zero(t, tx.calls)
		})
	}
}

func TestLeaderboardService_Submit_MaxLengthAccepted(t *testing.T) {
	store := &FakeLeaderboardStore{}
	svc := NewLeaderboardService(store, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)

	err := svc.Submit(context.Background(), Submission{
		Username:   strings.Repeat("数", 100),
		Score:      3,
		Difficulty: "easy",
		DaySeed:    strings.Repeat("9", 32),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"FindForUpdate", "Create"}, store.Trace())
}

func TestLeaderboardService_Submit_Merge(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		existing    []model.LeaderboardEntry
		score       int
		wantCreate  *model.LeaderboardEntry
		wantUpdate  []int
		wantDeleted []uint
		wantTrace   []string
	}{
		{
			name:  "first submission creates the row",
			score: 5,
			wantCreate: &model.LeaderboardEntry{
				Username:    "ada",
				Difficulty:  "hard",
				Score:       5,
				GamesPlayed: 1,
			},
			wantTrace: []string{"FindForUpdate", "Create"},
		},
		{
			name: "existing row accumulates",
			existing: []model.LeaderboardEntry{
				{ID: 7, Username: "ada", Difficulty: "hard", Score: 15, GamesPlayed: 2, CreatedAt: created},
			},
			score:       15,
			wantUpdate:  []int{7, 30, 3},
			wantDeleted: []uint{},
			wantTrace:   []string{"FindForUpdate", "UpdateTotals", "DeleteByIDs"},
		},
		{
			name: "fragmented rows collapse into the earliest",
			existing: []model.LeaderboardEntry{
				{ID: 3, Username: "ada", Difficulty: "hard", Score: 3, GamesPlayed: 1, CreatedAt: created},
				{ID: 9, Username: "ada", Difficulty: "hard", Score: 4, GamesPlayed: 1, CreatedAt: created.Add(time.Hour)},
				{ID: 12, Username: "ada", Difficulty: "hard", Score: 2, GamesPlayed: 1, CreatedAt: created.Add(2 * time.Hour)},
			},
			score:       1,
			wantUpdate:  []int{3, 10, 4},
			wantDeleted: []uint{9, 12},
			wantTrace:   []string{"FindForUpdate", "UpdateTotals", "DeleteByIDs"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotCreate  *model.LeaderboardEntry
				gotUpdate  []int
				gotDeleted []uint
			)
			store := &FakeLeaderboardStore{
				FindForUpdateFunc: func(tx *gorm.DB, username, difficulty string) ([]model.LeaderboardEntry, error) {
					return tt.existing, nil
				},
				CreateFunc: func(tx *gorm.DB, entry *model.LeaderboardEntry) error {
					gotCreate = entry
					return nil
				},
				UpdateTotalsFunc: func(tx *gorm.DB, id uint, score, gamesPlayed int, at time.Time) error {
					gotUpdate = []int{int(id), score, gamesPlayed}
					return nil
				},
				DeleteByIDsFunc: func(tx *gorm.DB, ids []uint) error {
					gotDeleted = ids
					return nil
				},
			}
			svc := NewLeaderboardService(store, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)

			err := svc.Submit(context.Background(), Submission{Username: " ada ", Score: tt.score, Difficulty: "hard"})
			require.NoError(t, err)

			assert.Equal(t, tt.wantCreate, gotCreate)
			assert.Equal(t, tt.wantUpdate, gotUpdate)
			assert.Equal(t, tt.wantDeleted, gotDeleted)
			assert.Equal(t, tt.wantTrace, store.Trace())
		})
	}
}

func TestLeaderboardService_Submit_Daily(t *testing.T) {
	tests := []struct {
		name      string
		daySeed   string
		confirm   func(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error
		wantErr   error
		wantTrace []string
		wantCalls int
	}{
		{
			name:      "practice submission skips the daily ledger",
			wantTrace: []string{"FindForUpdate", "Create"},
		},
		{
			name:      "first daily submission is merged",
			daySeed:   "2026-03-01",
			wantTrace: []string{"FindForUpdate", "Create"},
			wantCalls: 1,
		},
		{
			name:    "duplicate daily submission is rejected before merging",
			daySeed: "2026-03-01",
			confirm: func(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error {
				return util.ErrDuplicateDailySubmission
			},
			wantErr:   util.ErrDuplicateDailySubmission,
			wantCalls: 1,
		},
		{
			name:    "ledger storage failure",
			daySeed: "2026-03-01",
			confirm: func(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error {
				return util.ErrStorage
			},
			wantErr:   util.ErrStorage,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &FakeLeaderboardStore{}
			calls := 0
			validator := &FakeDailyValidator{
				ConfirmFunc: func(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error {
					calls++
					assert.Equal(t, "10.0.0.1", identity)
					assert.Equal(t, tt.daySeed, daySeed)
					if tt.confirm != nil {
						return tt.confirm(ctx, tx, identity, daySeed, at)
					}
					return nil
				},
			}
			svc := NewLeaderboardService(store, &FakeTx{}, validator, testLeaderboardConfig)

			err := svc.Submit(context.Background(), Submission{
				Username:   "ada",
				Score:      4,
				Difficulty: "easy",
				Identity:   "10.0.0.1",
				DaySeed:    tt.daySeed,
			})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantTrace == nil {
				assert.Empty(t, store.Trace())
			} else {
				assert.Equal(t, tt.wantTrace, store.Trace())
			}
		})
	}
}

func TestLeaderboardService_Submit_StoreFailure(t *testing.T) {
	store := &FakeLeaderboardStore{
		FindForUpdateFunc: func(tx *gorm.DB, username, difficulty string) ([]model.LeaderboardEntry, error) {
			return nil, errors.New("lock wait timeout exceeded")
		},
	}
	svc := NewLeaderboardService(store, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)

	err := svc.Submit(context.Background(), Submission{Username: "ada", Score: 3, Difficulty: "easy"})
	assert.ErrorIs(t, err, util.ErrStorage)
}

func TestLeaderboardService_ApplyScoreCaps(t *testing.T) {
	svc := NewLeaderboardService(&FakeLeaderboardStore{}, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)
	require.ErrorIs(t, svc.Submit(context.Background(), Submission{Username: "ada", Score: 8, Difficulty: "easy"}), util.ErrInvalidScore)

	svc.ApplyScoreCaps(config.LeaderboardConfig{MaxScores: map[string]int{"Easy": 8}})
	assert.NoError(t, svc.Submit(context.Background(), Submission{Username: "ada", Score: 8, Difficulty: "easy"}))
	assert.Equal(t, 100, svc.MaxScore("hard"), "unlisted difficulties fall back to the default cap")
}

func TestLeaderboardService_Top(t *testing.T) {
	t.Run("empty board is an empty list", func(t *testing.T) {
		svc := NewLeaderboardService(&FakeLeaderboardStore{}, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)
		rows, err := svc.Top(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, rows)
		assert.Empty(t, rows)
	})

	t.Run("passes the configured limit", func(t *testing.T) {
		var gotLimit int
		store := &FakeLeaderboardStore{
			TopFunc: func(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
				gotLimit = limit
				return []model.LeaderboardRow{{Username: "ada", Score: 30, GamesPlayed: 3}}, nil
			},
		}
		cfg := testLeaderboardConfig
		cfg.TopLimit = 25
		svc := NewLeaderboardService(store, &FakeTx{}, &FakeDailyValidator{}, cfg)

		rows, err := svc.Top(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 25, gotLimit)
		assert.Equal(t, []model.LeaderboardRow{{Username: "ada", Score: 30, GamesPlayed: 3}}, rows)
	})

	t.Run("storage failure", func(t *testing.T) {
		store := &FakeLeaderboardStore{
			TopFunc: func(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
				return nil, errors.New("server has gone away")
			},
		}
		svc := NewLeaderboardService(store, &FakeTx{}, &FakeDailyValidator{}, testLeaderboardConfig)
		_, err := svc.Top(context.Background())
		assert.ErrorIs(t, err, util.ErrStorage)
	})
}
