package api

import (
	"github.com/gin-gonic/gin"

	"github.com/kylejeon/testflow/internal/handlers"
	"github.com/kylejeon/testflow/internal/middleware"
)

func registerAuthRoutes(rg *gin.RouterGroup, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Sessions)
	inviteHandler := handlers.NewInvitationHandler(deps.Invitations, deps.Members, deps.Users)

	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Token verification is public: the recipient may not have an account yet.
	rg.GET("/invitations/verify", inviteHandler.Verify)

	protected := rg.Group("")
	protected.Use(middleware.RequireAuth(deps.JWT))
	{
		protected.POST("/auth/logout", authHandler.Logout)
		protected.GET("/auth/me", authHandler.Me)
		protected.PATCH("/auth/me", authHandler.UpdateProfile)
		protected.POST("/auth/password", authHandler.ChangePassword)

		protected.POST("/invitations/accept", inviteHandler.Accept)
	}
}
