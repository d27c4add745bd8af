package controller

import (
	"context"
	"errors"
	"math_arena_backend/internal/service"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/logger"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProblemController struct {
	Quota    *service.QuotaService
	Problems *service.ProblemService
}

func NewProblemController(quota *service.QuotaService, problems *service.ProblemService) *ProblemController {
	return &ProblemController{Quota: quota, Problems: problems}
}

type GenerateProblemRequest struct {
	Prompt           string `json:"prompt"`
	Topic            string `json:"topic"`
	Difficulty       string `json:"difficulty"`
	IsDailyChallenge bool   `json:"is_daily_challenge"`
	ProblemSeed      string `json:"problem_seed"`
}

type GenerateProblemResponse struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// @Summary 生成练习题
// @Description 按配额准入后，从缓存或生成服务获取题目
// @Tags 题目
// @Accept json
// @Produce json
// @Param request body GenerateProblemRequest true "出题请求"
// @Success 200 {object} GenerateProblemResponse
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 429 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /generate-problem [post]
func (c *ProblemController) GenerateProblem(ctx *gin.Context) {
	var req GenerateProblemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		util.BadRequest(ctx, "prompt is required")
		return
	}

	identity := ctx.ClientIP()
	daySeed := strings.TrimSpace(req.ProblemSeed)

	decision, err := c.Quota.Admit(ctx.Request.Context(), identity, req.IsDailyChallenge, daySeed)
	if err != nil {
		if errors.Is(err, util.ErrValidation) {
			util.BadRequest(ctx, "problem_seed is too long")
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	if !decision.Allowed() {
		writeDenial(ctx, decision)
		return
	}

	result, err := c.Problems.Source(ctx.Request.Context(), service.SourceRequest{
		Prompt:     req.Prompt,
		Topic:      strings.TrimSpace(req.Topic),
		Difficulty: strings.TrimSpace(req.Difficulty),
		Identity:   identity,
	})
	if err != nil {
		if decision.DailyRecorded {
			// 客户端断开也要撤销登记
			if rerr := c.Quota.ReleaseDaily(context.WithoutCancel(ctx.Request.Context()), identity, daySeed); rerr != nil {
				logger.Log.Error("Failed to release daily play", zap.String("ip", identity), zap.Error(rerr))
			}
		}
		if errors.Is(err, util.ErrGenerationFailed) {
			util.Error(ctx, http.StatusInternalServerError, "failed to generate problem, please try again later")
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, GenerateProblemResponse{
		Text:   result.Text,
		Source: string(result.Origin),
	})
}

func writeDenial(ctx *gin.Context, d service.Decision) {
	switch d.Outcome {
	case service.AdmissionDeniedDaily:
		util.Error(ctx, http.StatusForbidden, "daily challenge already played today")
	case service.AdmissionDeniedThrottle:
		util.TooManyRequests(ctx, "please wait before requesting another problem", d.RetryAfter)
	default:
		util.TooManyRequests(ctx, "problem quota exceeded, try again later", d.RetryAfter)
	}
}
