package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math_arena_backend/internal/config"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/repository"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/logger"
	"math_arena_backend/pkg/monitoring"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type ProblemCache interface {
	Random(ctx context.Context, topic, difficulty string, rng util.Rand) (*model.CachedProblem, error)
	Save(ctx context.Context, p *model.CachedProblem) error
}

type ProblemGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type SourceRequest struct {
	Prompt     string
	Topic      string
	Difficulty string
	Identity   string
}

type SourceResult struct {
	Text   string
	Origin model.ProblemOrigin
}

// ProblemService 决定题目来自缓存还是实时生成。
// 每次调用独立抽样，不存在会话级偏向。
type ProblemService struct {
	cache           ProblemCache
	generator       ProblemGenerator
	rng             util.Rand
	cacheEnabled    atomic.Bool
	probability     atomic.Uint64
	generateTimeout time.Duration
	writeTimeout    time.Duration
	wg              sync.WaitGroup
	now             func() time.Time
}

// NewProblemService cache 为 nil 表示没有可用的缓存存储
func NewProblemService(cache ProblemCache, generator ProblemGenerator, cfg config.CacheConfig, generateTimeout time.Duration, rng util.Rand) *ProblemService {
	if rng == nil {
		rng = util.DefaultRand
	}
	writeTimeout := time.Duration(cfg.WriteTimeoutSeconds) * time.Second
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	s := &ProblemService{
		cache:           cache,
		generator:       generator,
		rng:             rng,
		generateTimeout: generateTimeout,
		writeTimeout:    writeTimeout,
		now:             time.Now,
	}
	s.ApplyCacheConfig(cfg)
	return s
}

// ApplyCacheConfig 热更新缓存开关与命中概率
func (s *ProblemService) ApplyCacheConfig(cfg config.CacheConfig) {
	s.cacheEnabled.Store(cfg.Enabled)
	s.probability.Store(math.Float64bits(cfg.Probability))
}

func (s *ProblemService) cacheAvailable() bool {
	return s.cache != nil && s.cacheEnabled.Load()
}

func (s *ProblemService) cacheProbability() float64 {
	return math.Float64frombits(s.probability.Load())
}

func (s *ProblemService) Source(ctx context.Context, req SourceRequest) (SourceResult, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return SourceResult{}, fmt.Errorf("%w: prompt is required", util.ErrValidation)
	}

	keyed := req.Topic != "" && req.Difficulty != ""

	if keyed && s.cacheAvailable() && s.rng.Float64() < s.cacheProbability() {
		p, err := s.cache.Random(ctx, req.Topic, req.Difficulty, s.rng)
		switch {
		case err == nil:
			monitoring.ProblemsServed.WithLabelValues(string(model.OriginCache)).Inc()
			return SourceResult{Text: p.RawText, Origin: model.OriginCache}, nil
		case errors.Is(err, repository.ErrCacheMiss):
			logger.Log.Debug("Problem cache miss",
				zap.String("topic", req.Topic),
				zap.String("difficulty", req.Difficulty),
			)
		default:
			// 缓存故障降级为实时生成
			logger.Log.Warn("Problem cache read failed, falling back to generation", zap.Error(err))
		}
	}

	text, err := s.generate(ctx, req.Prompt)
	if err != nil {
		return SourceResult{}, err
	}
	monitoring.ProblemsServed.WithLabelValues(string(model.OriginAI)).Inc()

	if keyed && s.cacheAvailable() {
		s.writeBack(&model.CachedProblem{
			Topic:          req.Topic,
			Difficulty:     req.Difficulty,
			RawText:        text,
			SourceIdentity: req.Identity,
			CreatedAt:      s.now(),
		})
	}

	return SourceResult{Text: text, Origin: model.OriginAI}, nil
}

func (s *ProblemService) generate(ctx context.Context, prompt string) (string, error) {
	if s.generateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.generateTimeout)
		defer cancel()
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Log.Error("Problem generation failed", zap.Error(err))
		if errors.Is(err, util.ErrGenerationFailed) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", util.ErrGenerationFailed, err)
	}
	return text, nil
}

// writeBack 异步写回缓存，失败只记录日志，不影响已返回的响应
func (s *ProblemService) writeBack(p *model.CachedProblem) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		defer cancel()

		if err := s.cache.Save(ctx, p); err != nil {
			monitoring.CacheWriteFailures.Inc()
			logger.Log.Warn("Problem cache write-back failed",
				zap.String("topic", p.Topic),
				zap.String("difficulty", p.Difficulty),
				zap.Error(err),
			)
		}
	}()
}

// Wait 等待所有进行中的缓存写回完成
func (s *ProblemService) Wait() {
	s.wg.Wait()
}
