package router

import (
	"database/sql"
	"net/http"

	"bank_panel_backend/internal/handlers"
	"bank_panel_backend/internal/middleware"
	"bank_panel_backend/internal/repositories"
	"bank_panel_backend/internal/services"
	"bank_panel_backend/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Repositories bundles the persistence gateways the API runs on.
type Repositories struct {
	Clients       repositories.ClientRepository
	SearchRecords repositories.SearchRecordRepository
	Auth          repositories.AuthRepository
}

// NewPostgresRepositories builds every repository on top of db.
func NewPostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Clients:       repositories.NewClientRepository(db),
		SearchRecords: repositories.NewSearchRecordRepository(db),
		Auth:          repositories.NewAuthRepository(db),
	}
}

// NewMemoryRepositories builds in-process repositories.
func NewMemoryRepositories() Repositories {
	return Repositories{
		Clients:       repositories.NewMemoryClientRepository(),
		SearchRecords: repositories.NewMemorySearchRecordRepository(),
		Auth:          repositories.NewMemoryAuthRepository(),
	}
}

// Options configures the HTTP engine.
type Options struct {
	AllowedOrigins []string
	MetricsHandler http.Handler
}

// New creates a gin engine with the global middleware and all routes.
func New(repos Repositories, opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), utils.GinLogger(), utils.GinMetrics())

	config := cors.DefaultConfig()
	config.AllowOrigins = opts.AllowedOrigins
	if len(config.AllowOrigins) == 0 {
		config.AllowOrigins = []string{"http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", utils.RequestIDHeader}
	config.ExposeHeaders = []string{utils.RequestIDHeader}
	config.AllowCredentials = true
	engine.Use(cors.New(config))

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if opts.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	Setup(engine, repos)
	return engine
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, repos Repositories) {
	// Initialize Services
	authService := services.NewAuthService(repos.Auth)
	historyService := services.NewSearchHistoryService(repos.SearchRecords)
	clientService := services.NewClientService(repos.Clients, historyService)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	clientHandler := handlers.NewClientHandler(clientService)

	apiV1 := engine.Group("/api/v1")

	SetupAuthRoutes(apiV1, authHandler)

	authenticated := apiV1.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupClientRoutes(authenticated, clientHandler)
	}
}
