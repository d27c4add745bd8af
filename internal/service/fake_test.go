package service

import (
	"context"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/repository"
	"math_arena_backend/internal/util"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ------------------------
// Fake Daily Play Store
// ------------------------

type dailyKey struct{ ip, seed string }

// FakeDailyPlayStore 默认行为是带唯一约束的内存表，Func 字段非空时覆盖对应方法
type FakeDailyPlayStore struct {
	mu    sync.Mutex
	plays map[dailyKey]*model.DailyPlay
	trace []string

	FindByIPAndSeedFunc   func(ctx context.Context, tx *gorm.DB, ip, daySeed string) (*model.DailyPlay, error)
	InsertIfAbsentFunc    func(ctx context.Context, tx *gorm.DB, play *model.DailyPlay) (bool, error)
	ClaimSubmissionFunc   func(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) (bool, error)
	TouchLastPlayedFunc   func(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) error
	DeleteUnsubmittedFunc func(ctx context.Context, ip, daySeed string) error
}

func NewFakeDailyPlayStore() *FakeDailyPlayStore {
	return &FakeDailyPlayStore{plays: make(map[dailyKey]*model.DailyPlay)}
}

func (f *FakeDailyPlayStore) record(step string) {
	f.trace = append(f.trace, step)
}

func (f *FakeDailyPlayStore) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeDailyPlayStore) Get(ip, seed string) *model.DailyPlay {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays[dailyKey{ip, seed}]
}

func (f *FakeDailyPlayStore) FindByIPAndSeed(ctx context.Context, tx *gorm.DB, ip, daySeed string) (*model.DailyPlay, error) {
	f.mu.Lock()
	f.record("FindByIPAndSeed")
	f.mu.Unlock()
	if f.FindByIPAndSeedFunc != nil {
		return f.FindByIPAndSeedFunc(ctx, tx, ip, daySeed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.plays[dailyKey{ip, daySeed}]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *FakeDailyPlayStore) InsertIfAbsent(ctx context.Context, tx *gorm.DB, play *model.DailyPlay) (bool, error) {
	f.mu.Lock()
	f.record("InsertIfAbsent")
	f.mu.Unlock()
	if f.InsertIfAbsentFunc != nil {
		return f.InsertIfAbsentFunc(ctx, tx, play)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	k := dailyKey{play.IP, play.DaySeed}
	if _, ok := f.plays[k]; ok {
		return false, nil
	}
	cp := *play
	f.plays[k] = &cp
	return true, nil
}

func (f *FakeDailyPlayStore) ClaimSubmission(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) (bool, error) {
	f.mu.Lock()
	f.record("ClaimSubmission")
	f.mu.Unlock()
	if f.ClaimSubmissionFunc != nil {
		return f.ClaimSubmissionFunc(ctx, tx, ip, daySeed, at)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.plays[dailyKey{ip, daySeed}]
	if !ok || p.SubmittedAt != nil {
		return false, nil
	}
	p.SubmittedAt = &at
	p.LastPlayedAt = at
	return true, nil
}

func (f *FakeDailyPlayStore) TouchLastPlayed(ctx context.Context, tx *gorm.DB, ip, daySeed string, at time.Time) error {
	f.mu.Lock()
	f.record("TouchLastPlayed")
	f.mu.Unlock()
	if f.TouchLastPlayedFunc != nil {
		return f.TouchLastPlayedFunc(ctx, tx, ip, daySeed, at)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	k := dailyKey{ip, daySeed}
	if p, ok := f.plays[k]; ok {
		p.LastPlayedAt = at
		return nil
	}
	f.plays[k] = &model.DailyPlay{IP: ip, DaySeed: daySeed, PlayedAt: at, SubmittedAt: &at, LastPlayedAt: at}
	return nil
}

func (f *FakeDailyPlayStore) DeleteUnsubmitted(ctx context.Context, ip, daySeed string) error {
	f.mu.Lock()
	f.record("DeleteUnsubmitted")
	f.mu.Unlock()
	if f.DeleteUnsubmittedFunc != nil {
		return f.DeleteUnsubmittedFunc(ctx, ip, daySeed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	k := dailyKey{ip, daySeed}
	if p, ok := f.plays[k]; ok && p.SubmittedAt == nil {
		delete(f.plays, k)
	}
	return nil
}

// ------------------------
// Fake Problem Cache / Generator
// ------------------------

type FakeProblemCache struct {
	mu    sync.Mutex
	saved []*model.CachedProblem
	reads int

	RandomFunc func(ctx context.Context, topic, difficulty string) (*model.CachedProblem, error)
	SaveFunc   func(ctx context.Context, p *model.CachedProblem) error
}

func (f *FakeProblemCache) Random(ctx context.Context, topic, difficulty string, _ util.Rand) (*model.CachedProblem, error) {
	f.mu.Lock()
	f.reads++
	f.mu.Unlock()
	if f.RandomFunc != nil {
		return f.RandomFunc(ctx, topic, difficulty)
	}
	return nil, repository.ErrCacheMiss
}

func (f *FakeProblemCache) Save(ctx context.Context, p *model.CachedProblem) error {
	if f.SaveFunc != nil {
		if err := f.SaveFunc(ctx, p); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p)
	return nil
}

func (f *FakeProblemCache) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *FakeProblemCache) Saved() []*model.CachedProblem {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*model.CachedProblem, len(f.saved))
	copy(out, f.saved)
	return out
}

type FakeGenerator struct {
	mu    sync.Mutex
	calls int

	GenerateFunc func(ctx context.Context, prompt string) (string, error)
}

func (f *FakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, prompt)
	}
	return "generated: " + prompt, nil
}

func (f *FakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fixedRand Float64 固定返回 f，IntN 返回 n 对上界取模
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) IntN(n int) int   { return r.n % n }

// ------------------------
// Fake Leaderboard Store / Tx
// ------------------------

// FakeTx 不开启真实事务，直接以 nil tx 执行
type FakeTx struct {
	calls int
}

func (f *FakeTx) RunInTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.calls++
	return fn(nil)
}

type FakeLeaderboardStore struct {
	trace []string

	FindForUpdateFunc func(tx *gorm.DB, username, difficulty string) ([]model.LeaderboardEntry, error)
	CreateFunc        func(tx *gorm.DB, entry *model.LeaderboardEntry) error
	UpdateTotalsFunc  func(tx *gorm.DB, id uint, score, gamesPlayed int, at time.Time) error
	DeleteByIDsFunc   func(tx *gorm.DB, ids []uint) error
	TopFunc           func(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
}

func (f *FakeLeaderboardStore) Trace() []string {
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeLeaderboardStore) FindForUpdate(tx *gorm.DB, username, difficulty string) ([]model.LeaderboardEntry, error) {
	f.trace = append(f.trace, "FindForUpdate")
	if f.FindForUpdateFunc != nil {
		return f.FindForUpdateFunc(tx, username, difficulty)
	}
	return nil, nil
}

func (f *FakeLeaderboardStore) Create(tx *gorm.DB, entry *model.LeaderboardEntry) error {
	f.trace = append(f.trace, "Create")
	if f.CreateFunc != nil {
		return f.CreateFunc(tx, entry)
	}
	return nil
}

func (f *FakeLeaderboardStore) UpdateTotals(tx *gorm.DB, id uint, score, gamesPlayed int, at time.Time) error {
	f.trace = append(f.trace, "UpdateTotals")
	if f.UpdateTotalsFunc != nil {
		return f.UpdateTotalsFunc(tx, id, score, gamesPlayed, at)
	}
	return nil
}

func (f *FakeLeaderboardStore) DeleteByIDs(tx *gorm.DB, ids []uint) error {
	f.trace = append(f.trace, "DeleteByIDs")
	if f.DeleteByIDsFunc != nil {
		return f.DeleteByIDsFunc(tx, ids)
	}
	return nil
}

func (f *FakeLeaderboardStore) Top(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	f.trace = append(f.trace, "Top")
	if f.TopFunc != nil {
		return f.TopFunc(ctx, limit)
	}
	return nil, nil
}

type FakeDailyValidator struct {
	ConfirmFunc func(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error
}

func (f *FakeDailyValidator) ConfirmDailySubmission(ctx context.Context, tx *gorm.DB, identity, daySeed string, at time.Time) error {
	if f.ConfirmFunc != nil {
		return f.ConfirmFunc(ctx, tx, identity, daySeed, at)
	}
	return nil
}
