package handlers

import (
	"tasktrack/backend/internal/cache"
	"tasktrack/backend/internal/config"
	"tasktrack/backend/internal/middleware"
	"tasktrack/backend/internal/monitoring"
	"tasktrack/backend/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Router dependencies. Every protected route sits behind the auth gate;
// nothing below it runs without a verified identity in the context.
type RouterDeps struct {
	Config   *config.Config
	DB       *gorm.DB
	Tokens   *services.TokenService
	Cache    *cache.RedisCache
	Auth     *AuthHandler
	Register *RegisterHandler
	Users    *UserHandler
	Tasks    *TaskHandler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(monitoring.MetricsMiddleware())
	router.Use(cors.Default())
	router.Use(middleware.RateLimit(deps.Config.RateLimit))

	router.GET("/healthz", monitoring.HealthHandler(deps.DB, deps.Cache))
	router.GET("/readyz", monitoring.ReadinessHandler(deps.DB, deps.Cache))
	router.GET("/metrics", monitoring.MetricsHandler())

	api := router.Group("/api")

	user := api.Group("/user")
	{
		user.POST("/register", deps.Register.Register)
		user.POST("/login", deps.Auth.Login)

		me := user.Group("")
		me.Use(middleware.RequireAuth(deps.Tokens, deps.DB))
		{
			me.GET("/me", deps.Users.Me)
			me.PUT("/me", deps.Users.UpdateProfile)
			me.PUT("/password", deps.Users.UpdatePassword)
		}
	}

	tasks := api.Group("/tasks")
	tasks.Use(middleware.RequireAuth(deps.Tokens, deps.DB))
	{
		tasks.POST("", deps.Tasks.CreateTask)
		tasks.GET("", deps.Tasks.GetTasks)
		tasks.GET("/stats", deps.Tasks.GetStats)
		tasks.GET("/:id", deps.Tasks.GetTaskByID)
		tasks.PUT("/:id", deps.Tasks.UpdateTask)
		tasks.DELETE("/:id", deps.Tasks.DeleteTask)
	}

	return router
}
