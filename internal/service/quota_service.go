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

// DailyPlayStore 每日挑战登记，tx 为 nil 时使用仓库自身连接
type DailyPlayStore interface {
	FindByIPAndSeed(ctx context.Context, tx *gorm.DB, ip, daySeed string) (*model.DailyPlay, error)
	InsertIfAbsent(ctx context.Context, tx *gorm.DB, play *model.DailyPlay) (bool, error)
	ClaimSubmission(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) (bool, error)
	TouchLastPlayed(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) error
	DeleteUnsubmitted(ctx context.Context, ip, daySeed string) error
}

type Admission int

const (
	AdmissionAllowed Admission = iota
	AdmissionDeniedDaily
	AdmissionDeniedQuota
	AdmissionDeniedThrottle
)

func (a Admission) String() string {
	switch a {
	case AdmissionAllowed:
		return "allowed"
	case AdmissionDeniedDaily:
		return "already_played_today"
	case AdmissionDeniedQuota:
		return "quota_exceeded"
	case AdmissionDeniedThrottle:
		return "throttled"
	default:
		return "unknown"
	}
}

// Decision 出题准入结果
type Decision struct {
	Outcome Admission
	// DailyRecorded 本次准入写入了每日挑战登记，生成失败时应调用 ReleaseDaily
	DailyRecorded bool
	RetryAfter    time.Duration
}

func (d Decision) Allowed() bool {
	return d.Outcome == AdmissionAllowed
}

const (
	generalKeyPrefix = "general:"
	dailyKeyPrefix   = "daily:"
)

// QuotaService 出题配额账本。
// 普通练习与每日挑战使用两个独立的滚动窗口（键前缀不同），每日挑战不消耗普通配额；
// 每日挑战另外受 (ip, day_seed) 唯一登记约束。
type QuotaService struct {
	windows WindowStore
	daily   DailyPlayStore
	policy  WindowPolicy
	owners  atomic.Pointer[map[string]struct{}]
	now     func() time.Time
}

func NewQuotaService(windows WindowStore, daily DailyPlayStore, cfg config.QuotaConfig) *QuotaService {
	s := &QuotaService{
		windows: windows,
		daily:   daily,
		policy: WindowPolicy{
			Max:        cfg.MaxRequests,
			Window:     cfg.Window(),
			MinSpacing: cfg.MinSpacing(),
		},
		now: time.Now,
	}
	s.SetOwners(cfg.OwnerIPs)
	return s
}

// SetOwners 替换白名单，配置热更新时调用
func (s *QuotaService) SetOwners(ips []string) {
	owners := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			owners[ip] = struct{}{}
		}
	}
	s.owners.Store(&owners)
}

func (s *QuotaService) IsOwner(identity string) bool {
	owners := s.owners.Load()
	if owners == nil {
		return false
	}
	_, ok := (*owners)[identity]
	return ok
}

// Admit 出题前的唯一准入判断
func (s *QuotaService) Admit(ctx context.Context, identity string, isDaily bool, daySeed string) (Decision, error) {
	if isDaily && utf8.RuneCountInString(daySeed) > util.MaxDaySeedLength {
		return Decision{}, fmt.Errorf("%w: problem seed too long", util.ErrValidation)
	}
	if s.IsOwner(identity) {
		return Decision{Outcome: AdmissionAllowed}, nil
	}

	var (
		decision Decision
		err      error
	)
	if isDaily && daySeed != "" {
		decision, err = s.admitDaily(ctx, identity, daySeed)
	} else {
		decision, err = s.admitWindow(ctx, generalKeyPrefix+identity)
	}
	if err != nil {
		return Decision{}, err
	}

	if !decision.Allowed() {
		monitoring.AdmissionDenials.WithLabelValues(decision.Outcome.String()).Inc()
		logger.Log.Info("Problem request denied",
			zap.String("ip", identity),
			zap.String("reason", decision.Outcome.String()),
			zap.Duration("retry_after", decision.RetryAfter),
		)
	}
	return decision, nil
}

// admitDaily 先抢占 (ip, day_seed) 唯一登记再计入每日窗口，
// 并发请求中未抢到登记的一方总是得到 AdmissionDeniedDaily
func (s *QuotaService) admitDaily(ctx context.Context, identity, daySeed string) (Decision, error) {
	_, err := s.daily.FindByIPAndSeed(ctx, nil, identity, daySeed)
	if err == nil {
		return Decision{Outcome: AdmissionDeniedDaily}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Decision{}, fmt.Errorf("%w: find daily play: %v", util.ErrStorage, err)
	}

	now := s.now()
	inserted, err := s.daily.InsertIfAbsent(ctx, nil, &model.DailyPlay{
		IP:           identity,
		DaySeed:      daySeed,
		PlayedAt:     now,
		LastPlayedAt: now,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("%w: record daily play: %v", util.ErrStorage, err)
	}
	if !inserted {
		return Decision{Outcome: AdmissionDeniedDaily}, nil
	}

	decision, err := s.admitWindow(ctx, dailyKeyPrefix+identity)
	if err == nil && decision.Allowed() {
		decision.DailyRecorded = true
		return decision, nil
	}

	// 窗口拒绝时撤销刚写入的登记，稍后可以重试
	if relErr := s.ReleaseDaily(ctx, identity, daySeed); relErr != nil {
		logger.Log.Error("Failed to release daily play after window denial",
			zap.String("ip", identity),
			zap.String("day_seed", daySeed),
			zap.Error(relErr),
		)
		if err == nil {
			err = relErr
		}
	}
	if err != nil {
		return Decision{}, err
	}
	return decision, nil
}

func (s *QuotaService) admitWindow(ctx context.Context, key string) (Decision, error) {
	res, err := s.windows.Hit(ctx, key, s.now(), s.policy)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", util.ErrStorage, err)
	}

	switch res.Verdict {
	case WindowExhausted:
		return Decision{Outcome: AdmissionDeniedQuota, RetryAfter: res.RetryAfter}, nil
	case WindowThrottled:
		return Decision{Outcome: AdmissionDeniedThrottle, RetryAfter: res.RetryAfter}, nil
	default:
		return Decision{Outcome: AdmissionAllowed}, nil
	}
}

// ReleaseDaily 撤销尚未提交成绩的每日挑战登记
func (s *QuotaService) ReleaseDaily(ctx context.Context, identity, daySeed string) error {
	if err := s.daily.DeleteUnsubmitted(ctx, identity, daySeed); err != nil {
		return fmt.Errorf("%w: release daily play: %v", util.ErrStorage, err)
	}
	return nil
}

// ConfirmDailySubmission 在成绩写入的事务内复核每日挑战登记。
// 生成时登记的记录只能被认领一次，重复提交返回 ErrDuplicateDailySubmission。
func (s *QuotaService) ConfirmDailySubmission(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error {
	if s.IsOwner(identity) {
		if err := s.daily.TouchLastPlayed(ctx, tx, identity, daySeed, at); err != nil {
			return fmt.Errorf("%w: touch daily play: %v", util.ErrStorage, err)
		}
		return nil
	}

	claimed, err := s.daily.ClaimSubmission(ctx, tx, identity, daySeed, at)
	if err != nil {
		return fmt.Errorf("%w: claim daily play: %v", util.ErrStorage, err)
	}
	if claimed {
		return nil
	}

	// 没有生成时的登记（例如登记已被撤销），首次提交直接登记为已提交
	inserted, err := s.daily.InsertIfAbsent(ctx, tx, &model.DailyPlay{
		IP:           identity,
		DaySeed:      daySeed,
		PlayedAt:     at,
		SubmittedAt:  &at,
		LastPlayedAt: at,
	})
	if err != nil {
		return fmt.Errorf("%w: record daily play: %v", util.ErrStorage, err)
	}
	if !inserted {
		return util.ErrDuplicateDailySubmission
	}
	return nil
}
