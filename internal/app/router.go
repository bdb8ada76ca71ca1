package app

import (
	"cbseprep_backend/internal/config"
	"cbseprep_backend/internal/middleware"
	"cbseprep_backend/internal/model"

	"cbseprep_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	public := router.Group("/api/auth")
	{
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
		a.registerAdminRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/templates", c.template.List)

	sessions := rg.Group("/exams/sessions")
	sessions.Use(middleware.RoleMiddleware(model.Student))
	{
		sessions.POST("", c.exam.StartSession)
		sessions.GET("", c.exam.ListSessions)
		sessions.GET("/:id", c.exam.GetSession)
		sessions.PUT("/:id/answers", c.exam.RecordAnswer)
		sessions.POST("/:id/submit", c.exam.SubmitObjective)
		sessions.POST("/:id/uploads", c.exam.BeginUpload)
		sessions.POST("/:id/uploads/confirm", c.exam.MarkUploaded)
		sessions.POST("/:id/finish", c.exam.MarkPendingEvaluation)
	}

	subscriptions := rg.Group("/subscriptions")
	subscriptions.Use(middleware.RoleMiddleware(model.Student))
	{
		subscriptions.GET("/usage", c.subscription.Usage)
		subscriptions.GET("/history", c.subscription.History)
	}
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/workload", c.workload.MyWorkload)

		evaluations := teacher.Group("/evaluations")
		{
			evaluations.GET("", c.evaluation.ListMine)
			evaluations.GET("/:id", c.evaluation.Get)
			evaluations.POST("/:id/start", c.evaluation.Start)
			evaluations.PUT("/:id/marks", c.evaluation.SubmitMarks)
			evaluations.POST("/:id/complete", c.evaluation.Complete)
		}
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup, c *controllers) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.POST("/templates", c.template.Create)
		admin.PUT("/templates/:id/active", c.template.SetActive)

		admin.POST("/questions", c.template.CreateQuestion)
		admin.GET("/questions", c.template.ListQuestions)
		admin.PUT("/questions/:id", c.template.UpdateQuestion)
		admin.DELETE("/questions/:id", c.template.DeleteQuestion)

		admin.POST("/holidays", c.calendar.Create)
		admin.GET("/holidays", c.calendar.List)
		admin.DELETE("/holidays/:id", c.calendar.Delete)

		admin.POST("/subscriptions", c.subscription.Activate)

		admin.POST("/evaluations", c.evaluation.Assign)
		admin.GET("/evaluations/overdue", c.workload.Overdue)
		admin.GET("/evaluations/queue", c.workload.AssignmentQueue)
	}
}
