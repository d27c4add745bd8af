package app

import (
	"math_arena_backend/docs"
	"math_arena_backend/internal/config"
	"math_arena_backend/internal/middleware"
	"math_arena_backend/internal/util"
	"math_arena_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes(router, c)
	a.registerAdminRoutes(router, c, cfg)
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)

		public.POST("/generate-problem", c.problem.GenerateProblem)

		public.POST("/leaderboard/submit", c.leaderboard.Submit)
		public.GET("/leaderboard/top", c.leaderboard.Top)

		public.POST("/submit-request", c.certificate.SubmitRequest)
	}
}

func (a *App) registerAdminRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.POST("/admin/login", c.admin.Login)

	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(util.RoleAdmin))
	{
		admin.GET("/requests", c.admin.ListRequests)
		admin.DELETE("/delete-request/:id", c.admin.DeleteRequest)
		admin.GET("/generate-cert/:id", c.admin.GenerateCertificate)
	}
}
