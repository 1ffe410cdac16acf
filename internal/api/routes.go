package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"traincomp/internal/api/middleware"
	"traincomp/internal/auth"
	"traincomp/internal/clock"
	"traincomp/internal/config"
	"traincomp/internal/database"
	"traincomp/internal/mailer"
	"traincomp/internal/storage"
)

// RegisterRoutes 注册 /v1 下的全部业务路由。
// mail 为 nil 时培训通知静默跳过（开发环境常态）。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
	mail mailer.Mailer,
	clk clock.Clock,
) {
	authHandler := NewAuthHandler(db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOrigins)
	userHandler := NewUserHandler(db, authService)
	catalogHandler := NewCatalogHandler(db)
	designationSkillHandler := NewDesignationSkillHandler(db)
	userSkillHandler := NewUserSkillHandler(db)
	trainingHandler := NewTrainingHandler(db, mail, clk, logger)
	competencyHandler := NewCompetencyHandler(db, logger)
	requirementHandler := NewRequirementHandler(db, clk, logger)
	reportHandler := NewReportHandler(db, asynqClient, storageClient, logger)
	auditHandler := NewAuditHandler(db)
	calendarHandler := NewCalendarHandler(db, cfg.API.ClamdAddr, logger)

	authMiddleware := middleware.AuthMiddleware(authService)
	auditMiddleware := middleware.AuditMiddleware(db, logger)
	staffOnly := middleware.RequireRoles(database.RoleAdmin, database.RoleHR)
	managerOnly := middleware.RequireRoles(database.RoleAdmin, database.RoleHR, database.RoleHOD)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware, auditMiddleware)

		users := protected.Group("/users")
		{
			users.GET("/me", userHandler.Me)
			users.GET("/me/skills", userSkillHandler.MyLevels)
			users.POST("", staffOnly, userHandler.Create)
			users.GET("", managerOnly, userHandler.List)
			users.GET("/:id", userHandler.Get)
			users.PUT("/:id", staffOnly, userHandler.Update)
			users.DELETE("/:id", middleware.RequireRoles(database.RoleAdmin), userHandler.Deactivate)

			users.GET("/:id/skills", userSkillHandler.ListForUser)
			users.PUT("/:id/skills", userSkillHandler.Upsert)
			users.PUT("/:id/skills/required", managerOnly, userSkillHandler.BulkSetRequired)
		}

		for _, entity := range []string{"departments", "designations", "skills"} {
			g := protected.Group("/" + entity)
			g.GET("", catalogHandler.List(entity))
			g.POST("", staffOnly, catalogHandler.Create(entity))
			g.PUT("/:id", staffOnly, catalogHandler.Update(entity))
			g.DELETE("/:id", staffOnly, catalogHandler.Delete(entity))
		}

		designations := protected.Group("/designations/:id/skills")
		{
			designations.GET("", designationSkillHandler.List)
			designations.POST("", staffOnly, designationSkillHandler.Assign)
			designations.DELETE("/:skillId", staffOnly, designationSkillHandler.Remove)
		}

		trainings := protected.Group("/trainings")
		{
			trainings.GET("", trainingHandler.List)
			trainings.GET("/events", trainingHandler.Events)
			trainings.GET("/:id", trainingHandler.Get)
			trainings.GET("/:id/skills", trainingHandler.ListSkills)
			trainings.POST("", managerOnly, trainingHandler.Create)
			trainings.PUT("/:id", managerOnly, trainingHandler.Update)
			trainings.POST("/:id/postpone", managerOnly, trainingHandler.Postpone)
			trainings.POST("/:id/cancel", managerOnly, trainingHandler.Cancel)
			trainings.POST("/:id/complete", managerOnly, trainingHandler.Complete)
			trainings.PUT("/:id/attendance", managerOnly, trainingHandler.UpdateAttendance)
		}

		comp := protected.Group("/competency")
		{
			comp.GET("/users/:id/gap", competencyHandler.UserGap)
			comp.GET("/users/:id/matrix", competencyHandler.UserMatrix)
			comp.GET("/users/:id/recommendations", competencyHandler.Recommendations)
			comp.GET("/departments/:id/gap", managerOnly, competencyHandler.DepartmentGap)
			comp.GET("/matrix", managerOnly, competencyHandler.OrgMatrix)
		}

		requirements := protected.Group("/requirements")
		{
			requirements.GET("/me", requirementHandler.ListMine)
			requirements.POST("/me/sync", requirementHandler.SyncMe)
			requirements.GET("/users/:id", requirementHandler.ListForUser)
			requirements.POST("/users/:id/sync", managerOnly, requirementHandler.SyncUser)
			requirements.PATCH("/:id", managerOnly, requirementHandler.UpdateStatus)
		}

		reports := protected.Group("/reports")
		{
			reports.GET("/catalog", reportHandler.Catalog)
			reports.GET("/dashboard", managerOnly, reportHandler.Dashboard)
			reports.POST("/exports", reportHandler.CreateExport)
			reports.GET("/exports", reportHandler.ListExports)
			reports.GET("/exports/:id/download", reportHandler.DownloadLink)
		}

		protected.GET("/audit-logs", staffOnly, auditHandler.List)

		calendar := protected.Group("/calendar")
		{
			calendar.GET("", calendarHandler.List)
			calendar.POST("/import", staffOnly, calendarHandler.Import)
		}
	}
}
