package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/kylejeon/testflow/internal/auth"
	"github.com/kylejeon/testflow/internal/handlers"
	"github.com/kylejeon/testflow/internal/middleware"
	"github.com/kylejeon/testflow/internal/realtime"
	"github.com/kylejeon/testflow/internal/services"
	"github.com/kylejeon/testflow/internal/storage"
)

// Dependencies collects everything the router needs.
type Dependencies struct {
	DB          *gorm.DB
	JWT         *auth.JWTService
	Sessions    *auth.SessionService
	Users       *services.UserService
	Projects    *services.ProjectService
	Members     *services.MembershipService
	Invitations *services.InvitationService
	Cases       *services.TestCaseService
	Folders     *services.FolderService
	Milestones  *services.MilestoneService
	Runs        *services.RunService
	TestSess    *services.TestSessionService
	Documents   *services.DocumentService
	Store       storage.Store
	Hub         *realtime.Hub

	MetricsEnabled  bool
	MetricsEndpoint string
	AllowedOrigins  []string
}

// NewRouter assembles the gin engine with middleware and all routes.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	limiter := middleware.NewRateLimiter(300, time.Minute)
	router.Use(
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.Metrics(),
		middleware.SecurityHeaders(),
		middleware.CORS(deps.AllowedOrigins),
		limiter.Middleware(),
	)

	health := handlers.NewHealthHandler(deps.DB)
	router.GET("/health", health.Check)

	if deps.MetricsEnabled {
		endpoint := deps.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		router.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	registerAuthRoutes(v1, deps)
	registerProjectRoutes(v1, deps)

	return router
}
