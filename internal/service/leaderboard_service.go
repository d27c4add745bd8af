package service

import (
	"context"
	"errors"
	"fmt"
	"math_arena_backend/internal/config"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/logger"
	"math_arena_backend/pkg/monitoring"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type LeaderboardStore interface {
	FindForUpdate(tx *gorm.DB, username, difficulty string) ([]model.LeaderboardEntry, error)
	Create(tx *gorm.DB, entry *model.LeaderboardEntry) error
	UpdateTotals(tx *gorm.DB, id uint, score, gamesPlayed int, at time.Time) error
	DeleteByIDs(tx *gorm.DB, ids []uint) error
	Top(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// DailySubmissionValidator 由 QuotaService 实现
type DailySubmissionValidator interface {
	ConfirmDailySubmission(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error
}

type Submission struct {
	Username   string
	Score      int
	Difficulty string
	Identity   string
	// DaySeed 非空表示每日挑战成绩
	DaySeed string
}

type scoreCaps struct {
	byDifficulty map[string]int
	fallback     int
}

type LeaderboardService struct {
	store    LeaderboardStore
	tx       TxRunner
	daily    DailySubmissionValidator
	locks    *keyedMutex
	caps     atomic.Pointer[scoreCaps]
	topLimit int
	now      func() time.Time
}

func NewLeaderboardService(store LeaderboardStore, tx TxRunner, daily DailySubmissionValidator, cfg config.LeaderboardConfig) *LeaderboardService {
	topLimit := cfg.TopLimit
	if topLimit <= 0 {
		topLimit = 100
	}
	s := &LeaderboardService{
		store:    store,
		tx:       tx,
		daily:    daily,
		locks:    newKeyedMutex(),
		topLimit: topLimit,
		now:      time.Now,
	}
	s.ApplyScoreCaps(cfg)
	return s
}

// ApplyScoreCaps 难度名大小写不敏感
func (s *LeaderboardService) ApplyScoreCaps(cfg config.LeaderboardConfig) {
	caps := &scoreCaps{
		byDifficulty: make(map[string]int, len(cfg.MaxScores)),
		fallback:     cfg.DefaultMaxScore,
	}
	if caps.fallback <= 0 {
		caps.fallback = 100
	}
	for k, v := range cfg.MaxScores {
		caps.byDifficulty[strings.ToLower(strings.TrimSpace(k))] = v
	}
	s.caps.Store(caps)
}

func (s *LeaderboardService) MaxScore(difficulty string) int {
	caps := s.caps.Load()
	if max, ok := caps.byDifficulty[strings.ToLower(difficulty)]; ok {
		return max
	}
	return caps.fallback
}

// Submit 校验成绩后合并到 (username, difficulty) 的唯一累计行
func (s *LeaderboardService) Submit(ctx context.Context, sub Submission) error {
	username := strings.TrimSpace(sub.Username)
	difficulty := strings.TrimSpace(sub.Difficulty)
	if username == "" || difficulty == "" {
		monitoring.LeaderboardSubmissions.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: username and difficulty are required", util.ErrValidation)
	}
	if utf8.RuneCountInString(username) > util.MaxUsernameLength ||
		utf8.RuneCountInString(difficulty) > util.MaxDifficultyLength ||
		utf8.RuneCountInString(sub.DaySeed) > util.MaxDaySeedLength {
		monitoring.LeaderboardSubmissions.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: username, difficulty or problem seed too long", util.ErrValidation)
	}

	if sub.Score <= 0 || sub.Score > s.MaxScore(difficulty) {
		monitoring.LeaderboardSubmissions.WithLabelValues("suspicious").Inc()
		logger.Log.Warn("Suspicious score rejected",
			zap.String("username", username),
			zap.String("difficulty", difficulty),
			zap.Int("score", sub.Score),
			zap.String("ip", sub.Identity),
		)
		return util.ErrInvalidScore
	}

	unlock := s.locks.Lock(username + "\x00" + difficulty)
	defer unlock()

	now := s.now()
	err := s.tx.RunInTx(ctx, func(tx *gorm.DB) error {
		if sub.DaySeed != "" {
			if err := s.daily.ConfirmDailySubmission(ctx, tx, sub.Identity, sub.DaySeed, now); err != nil {
				return err
			}
		}
		return s.merge(tx, username, difficulty, sub.Score, now)
	})

	switch {
	case err == nil:
		monitoring.LeaderboardSubmissions.WithLabelValues("accepted").Inc()
		return nil
	case errors.Is(err, util.ErrDuplicateDailySubmission):
		monitoring.LeaderboardSubmissions.WithLabelValues("duplicate_daily").Inc()
		logger.Log.Info("Duplicate daily submission rejected",
			zap.String("username", username),
			zap.String("ip", sub.Identity),
			zap.String("day_seed", sub.DaySeed),
		)
		return err
	case errors.Is(err, util.ErrStorage):
		monitoring.LeaderboardSubmissions.WithLabelValues("error").Inc()
		return err
	default:
		monitoring.LeaderboardSubmissions.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", util.ErrStorage, err)
	}
}

// merge 累加所有历史行到最早的一行并删除其余碎片行
func (s *LeaderboardService) merge(tx *gorm.DB, username, difficulty string, score int, now time.Time) error {
	entries, err := s.store.FindForUpdate(tx, username, difficulty)
	if err != nil {
		return fmt.Errorf("%w: load leaderboard rows: %v", util.ErrStorage, err)
	}

	if len(entries) == 0 {
		err := s.store.Create(tx, &model.LeaderboardEntry{
			Username:    username,
			Difficulty:  difficulty,
			Score:       score,
			GamesPlayed: 1,
		})
		if err != nil {
			return fmt.Errorf("%w: insert leaderboard row: %v", util.ErrStorage, err)
		}
		return nil
	}

	total, games := 0, 0
	stale := make([]uint, 0, len(entries)-1)
	for i, e := range entries {
		total += e.Score
		games += e.GamesPlayed
		if i > 0 {
			stale = append(stale, e.ID)
		}
	}

	canonical := entries[0]
	if err := s.store.UpdateTotals(tx, canonical.ID, total+score, games+1, now); err != nil {
		return fmt.Errorf("%w: update leaderboard row: %v", util.ErrStorage, err)
	}
	if err := s.store.DeleteByIDs(tx, stale); err != nil {
		return fmt.Errorf("%w: delete fragmented rows: %v", util.ErrStorage, err)
	}

	if len(stale) > 0 {
		logger.Log.Info("Collapsed fragmented leaderboard rows",
			zap.String("username", username),
			zap.String("difficulty", difficulty),
			zap.Int("removed", len(stale)),
		)
	}
	return nil
}

func (s *LeaderboardService) Top(ctx context.Context) ([]model.LeaderboardRow, error) {
	rows, err := s.store.Top(ctx, s.topLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: top leaderboard: %v", util.ErrStorage, err)
	}
	if rows == nil {
		rows = []model.LeaderboardRow{}
	}
	return rows, nil
}
