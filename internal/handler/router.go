package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/taskhub/backend/internal/obs"
	"github.com/taskhub/backend/internal/service"
)

type RouterConfig struct {
	Auth     *service.AuthService
	Users    *service.UserService
	Projects *service.ProjectService
	Tasks    *service.TaskService
	DB       Pinger

	AuthLimiter    *RateLimiter
	AllowedOrigins []string
	// TrustedProxies may set X-Forwarded-For. When empty, the client IP used
	// for rate limiting is the socket peer.
	TrustedProxies []string
}

func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	useJSONFieldNames()

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestLogger(), obs.Instrument(), CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/ping", Ping)
	router.GET("/", Root)
	router.GET("/health", Health(cfg.DB))
	router.GET("/metrics", gin.WrapH(obs.Handler()))
	router.GET("/openapi.json", OpenAPIDoc)

	authHandler := NewAuthHandler(cfg.Auth)
	requireAuth := AuthMiddleware(cfg.Auth)

	api := router.Group("/api")

	auth := api.Group("/auth")
	if cfg.AuthLimiter != nil {
		auth.Use(cfg.AuthLimiter.Middleware())
	}
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", requireAuth, authHandler.Me)

	protected := api.Group("", requireAuth)

	projects := NewProjectHandler(cfg.Projects)
	protected.GET("/projects", projects.ListProjects)
	protected.POST("/projects", projects.CreateProject)
	protected.GET("/projects/:id", projects.GetProject)
	protected.PUT("/projects/:id", projects.UpdateProject)
	protected.DELETE("/projects/:id", projects.DeleteProject)

	tasks := NewTaskHandler(cfg.Tasks)
	protected.GET("/tasks", tasks.ListTasks)
	protected.POST("/tasks", tasks.CreateTask)
	protected.GET("/tasks/count", tasks.CountTasks)
	protected.GET("/tasks/:id", tasks.GetTask)
	protected.PUT("/tasks/:id", tasks.UpdateTask)
	protected.DELETE("/tasks/:id", tasks.DeleteTask)

	users := NewUserHandler(cfg.Users)
	protected.GET("/users/me", users.GetMe)
	protected.PUT("/users/me", users.UpdateMe)
	protected.PUT("/users/me/password", users.ChangePassword)
	protected.DELETE("/users/me", users.DeleteMe)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	return router, nil
}
