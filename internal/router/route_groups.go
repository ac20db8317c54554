package router

import (
	"bank_panel_backend/internal/handlers"
	"bank_panel_backend/internal/middleware"
	"bank_panel_backend/internal/models"

	"github.com/gin-gonic/gin"
)

// SetupAuthRoutes sets up the authentication routes.
func SetupAuthRoutes(apiGroup *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	authRoutes := apiGroup.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.RegisterUser)
		authRoutes.POST("/login", authHandler.LoginUser)

		authRequiredRoutes := authRoutes.Group("")
		authRequiredRoutes.Use(middleware.AuthMiddleware())
		{
			authRequiredRoutes.GET("/me", authHandler.GetCurrentUser)
		}

		adminRoutes := authRoutes.Group("")
		adminRoutes.Use(middleware.AuthMiddleware(), middleware.RoleAuthMiddleware(models.RoleAdmin))
		{
			adminRoutes.POST("/admin/register", authHandler.RegisterAdmin)
			adminRoutes.GET("/users", authHandler.ListUsers)
			adminRoutes.PUT("/users/:id", authHandler.UpdateUser)
			adminRoutes.DELETE("/users/:id", authHandler.DeleteUser)
			adminRoutes.GET("/roles", authHandler.ListRoles)
			adminRoutes.POST("/roles", authHandler.AddRole)
			adminRoutes.PUT("/roles/:id", authHandler.UpdateRole)
			adminRoutes.DELETE("/roles/:id", authHandler.DeleteRole)
		}
	}
}

// SetupClientRoutes sets up the client catalog routes.
func SetupClientRoutes(authenticatedGroup *gin.RouterGroup, clientHandler *handlers.ClientHandler) {
	clientRoutes := authenticatedGroup.Group("/clients")
	clientRoutes.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
	{
		clientRoutes.GET("", clientHandler.ListClients)
		clientRoutes.GET("/last-searches", clientHandler.LastSearches)
		clientRoutes.GET("/:id", clientHandler.GetClientByID)
		clientRoutes.POST("", clientHandler.CreateClient)
		clientRoutes.PUT("/:id", clientHandler.UpdateClient)
		clientRoutes.DELETE("/:id", clientHandler.DeleteClient)
	}
}
