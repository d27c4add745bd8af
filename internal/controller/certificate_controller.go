package controller

import (
	"errors"
	"math_arena_backend/internal/service"
	"math_arena_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	Service *service.CertificateService
}

func NewCertificateController(s *service.CertificateService) *CertificateController {
	return &CertificateController{Service: s}
}

type CertificateRequestBody struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// @Summary 申请证书
// @Tags 证书
// @Accept json
// @Produce json
// @Param request body CertificateRequestBody true "申请"
// @Success 200 {object} map[string]bool
// @Router /submit-request [post]
func (c *CertificateController) SubmitRequest(ctx *gin.Context) {
	var req CertificateRequestBody
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "invalid data")
		return
	}

	if _, err := c.Service.CreateRequest(ctx.Request.Context(), req.Username, req.Score); err != nil {
		if errors.Is(err, util.ErrValidation) {
			util.BadRequest(ctx, "invalid username")
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
