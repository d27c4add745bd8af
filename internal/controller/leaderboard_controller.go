package controller

import (
	"errors"
	"math_arena_backend/internal/model"
	"math_arena_backend/internal/service"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/logger"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LeaderboardController struct {
	Service *service.LeaderboardService
}

func NewLeaderboardController(s *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{Service: s}
}

type SubmitScoreRequest struct {
	Username         string `json:"username"`
	Score            *int   `json:"score"`
	Difficulty       string `json:"difficulty"`
	IsDailyChallenge bool   `json:"is_daily_challenge"`
	ProblemSeed      string `json:"problem_seed"`
}

// @Summary 提交成绩
// @Tags 排行榜
// @Accept json
// @Produce json
// @Param request body SubmitScoreRequest true "成绩"
// @Success 201 {object} map[string]bool
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 500 {object} util.Response
// @Router /leaderboard/submit [post]
func (c *LeaderboardController) Submit(ctx *gin.Context) {
	var req SubmitScoreRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "invalid data")
		return
	}
	if req.Score == nil {
		util.BadRequest(ctx, "score is required")
		return
	}

	sub := service.Submission{
		Username:   req.Username,
		Score:      *req.Score,
		Difficulty: req.Difficulty,
		Identity:   ctx.ClientIP(),
	}
	if req.IsDailyChallenge {
		sub.DaySeed = strings.TrimSpace(req.ProblemSeed)
	}

	err := c.Service.Submit(ctx.Request.Context(), sub)
	switch {
	case err == nil:
		ctx.JSON(http.StatusCreated, gin.H{"success": true})
	case errors.Is(err, util.ErrValidation):
		util.BadRequest(ctx, "invalid data")
	case errors.Is(err, util.ErrInvalidScore):
		util.Error(ctx, http.StatusForbidden, "invalid or suspicious score")
	case errors.Is(err, util.ErrDuplicateDailySubmission):
		util.Error(ctx, http.StatusForbidden, "daily challenge score already submitted")
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary 排行榜前100名
// @Tags 排行榜
// @Produce json
// @Success 200 {array} model.LeaderboardRow
// @Router /leaderboard/top [get]
func (c *LeaderboardController) Top(ctx *gin.Context) {
	rows, err := c.Service.Top(ctx.Request.Context())
	if err != nil {
		logger.Log.Error("Failed to load leaderboard", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, []model.LeaderboardRow{})
		return
	}
	ctx.JSON(http.StatusOK, rows)
}
