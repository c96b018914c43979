package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "claimflow/docs"
	"claimflow/internal/domain"
	"claimflow/internal/handler"
	"claimflow/internal/middleware"
	"claimflow/internal/service"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	authSvc service.AuthService,
	pipelineH *handler.PipelineHandler,
	workflowH *handler.WorkflowConfigHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")

	// Protected routes - require a service token for the requested tenant
	protected := v1.Group("")
	protected.Use(middleware.AuthMiddleware(authSvc))
	protected.Use(middleware.TenantGuard())

	tickets := protected.Group("/tickets")
	tickets.POST("", pipelineH.StartTicket)
	tickets.GET("/:ticketId", pipelineH.GetTicket)
	tickets.POST("/:ticketId/documents", pipelineH.UploadDocument)
	tickets.POST("/:ticketId/agents/:agentId/run", pipelineH.RunAgent)
	tickets.POST("/:ticketId/stages/:stageName/run", pipelineH.RunStage)
	tickets.POST("/:ticketId/scoring/:scoringType", pipelineH.RunScoring)
	tickets.POST("/:ticketId/consolidate", pipelineH.Consolidate)
	tickets.POST("/:ticketId/delegates/:delegateKey/run", pipelineH.RunSteps)
	tickets.GET("/:ticketId/results", pipelineH.Retrieve)
	tickets.GET("/:ticketId/export", pipelineH.Export)

	// Workflow configuration
	workflows := protected.Group("/workflows")
	workflows.GET("/:workflowKey/config", workflowH.Get)
	workflows.PUT("/:workflowKey/config", middleware.RequireRole(domain.RoleAdmin), workflowH.Put)

	return r
}
