package main

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/projecthub/internal/middleware"
	"github.com/huangang/projecthub/internal/models"
	"github.com/huangang/projecthub/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.Use(middleware.CORS(svc.cfg.Server.AllowOrigins))
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false

	r.GET("/health", svc.healthHandler.CheckHealth)

	// project-scoped gates, keyed by the role each action declares
	canRead := middleware.RequireProjectRole(svc.evaluator, models.RoleRead)
	canWrite := middleware.RequireProjectRole(svc.evaluator, models.RoleWrite)
	canAdmin := middleware.RequireProjectRole(svc.evaluator, models.RoleAdmin)
	isOwner := middleware.RequireProjectRole(svc.evaluator, models.RoleOwner)
	limited := svc.rateLimiter.Middleware()

	api := r.Group("/api")
	api.Use(middleware.QueryTimeout(svc.cfg.Database.QueryTimeout))
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", svc.authHandler.Login)
		}

		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.PUT("/auth/password", svc.authHandler.ChangePassword)

			protected.GET("/dashboard/stats", svc.dashboardHandler.GetStats)

			protected.GET("/projects", svc.projectHandler.List)
			protected.POST("/projects", limited, svc.projectHandler.Create)

			project := protected.Group("/projects/:id")
			{
				project.GET("", canRead, svc.projectHandler.GetByID)
				project.PUT("", canAdmin, svc.projectHandler.Update)
				project.POST("/archive", canAdmin, svc.projectHandler.Archive)
				project.POST("/unarchive", canAdmin, svc.projectHandler.Unarchive)
				project.DELETE("", isOwner, svc.projectHandler.Delete)

				project.GET("/role", canRead, svc.contributorHandler.Role)
				project.GET("/contributors", canRead, svc.contributorHandler.List)
				project.POST("/contributors", limited, canAdmin, svc.contributorHandler.Add)
				project.PUT("/contributors/:cid", limited, canAdmin, svc.contributorHandler.Update)
				project.DELETE("/contributors/:cid", limited, canAdmin, svc.contributorHandler.Remove)

				project.GET("/tasks", canRead, svc.taskHandler.List)
				project.GET("/tasks/:taskId", canRead, svc.taskHandler.Get)
				project.POST("/tasks", canWrite, svc.taskHandler.Create)
				project.PUT("/tasks/:taskId", canWrite, svc.taskHandler.Update)
				project.DELETE("/tasks/:taskId", canAdmin, svc.taskHandler.Delete)
			}

			admin := protected.Group("")
			admin.Use(middleware.AdminRequired())
			{
				admin.GET("/users", svc.userHandler.List)
				admin.POST("/users", svc.userHandler.Create)
				admin.PUT("/users/:id", svc.userHandler.Update)

				admin.GET("/system-logs", svc.systemLogHandler.List)
				admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
			}
		}
	}
}
