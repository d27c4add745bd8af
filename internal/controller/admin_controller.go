package controller

import (
	"errors"
	"math_arena_backend/internal/service"
	"math_arena_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AdminController struct {
	Auth         *service.AuthService
	Certificates *service.CertificateService
}

func NewAdminController(auth *service.AuthService, certificates *service.CertificateService) *AdminController {
	return &AdminController{Auth: auth, Certificates: certificates}
}

type AdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// @Summary 管理员登录
// @Tags 管理
// @Accept json
// @Produce json
// @Param request body AdminLoginRequest true "口令"
// @Success 200 {object} util.Response
// @Failure 401 {object} util.Response
// @Router /admin/login [post]
func (c *AdminController) Login(ctx *gin.Context) {
	var req AdminLoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, "password is required")
		return
	}

	token, err := c.Auth.AdminLogin(req.Password)
	if err != nil {
		if errors.Is(err, util.ErrInvalidCredentials) {
			util.Unauthorized(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"token": token})
}

// @Summary 证书申请列表
// @Tags 管理
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /admin/requests [get]
func (c *AdminController) ListRequests(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))

	result, err := c.Certificates.List(ctx.Request.Context(), page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 删除证书申请
// @Tags 管理
// @Security ApiKeyAuth
// @Param id path int true "申请ID"
// @Success 200 {object} util.Response
// @Router /admin/delete-request/{id} [delete]
func (c *AdminController) DeleteRequest(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	if err := c.Certificates.Delete(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, util.ErrRequestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"success": true})
}

// @Summary 生成证书
// @Tags 管理
// @Security ApiKeyAuth
// @Param id path int true "申请ID"
// @Success 200 {object} util.Response
// @Router /admin/generate-cert/{id} [get]
func (c *AdminController) GenerateCertificate(ctx *gin.Context) {
	id, err := util.ParseID(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, "invalid id")
		return
	}

	url, err := c.Certificates.Generate(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, util.ErrRequestNotFound) {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"url": url})
}
