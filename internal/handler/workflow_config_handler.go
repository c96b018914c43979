package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"claimflow/internal/service"
)

const maxConfigBytes = 1 << 20

// WorkflowConfigHandler manages workflow configurations of the token's tenant.
type WorkflowConfigHandler struct {
	configService service.WorkflowConfigService
}

// NewWorkflowConfigHandler creates a new WorkflowConfigHandler.
func NewWorkflowConfigHandler(configService service.WorkflowConfigService) *WorkflowConfigHandler {
	return &WorkflowConfigHandler{configService: configService}
}

// Get handles GET /api/v1/workflows/:workflowKey/config
// @Summary Get a workflow configuration
// @Tags workflows
// @Produce json
// @Param workflowKey path string true "Workflow key"
// @Success 200 {object} Response{data=service.WorkflowConfigSummary} "Configuration"
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Security BearerAuth
// @Router /workflows/{workflowKey}/config [get]
func (h *WorkflowConfigHandler) Get(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	out, err := h.configService.Get(c.Request.Context(), tenantID, c.Param("workflowKey"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// Put handles PUT /api/v1/workflows/:workflowKey/config
// @Summary Store a workflow configuration
// @Description Validate and store the configuration blob; cached copies are dropped
// @Tags workflows
// @Accept json
// @Produce json
// @Param workflowKey path string true "Workflow key"
// @Param config body object true "Workflow configuration"
// @Success 200 {object} Response{data=service.WorkflowConfigSummary} "Stored"
// @Failure 400 {object} ErrorResponseBody "Invalid configuration"
// @Failure 403 {object} ErrorResponseBody "Admin role required"
// @Security BearerAuth
// @Router /workflows/{workflowKey}/config [put]
func (h *WorkflowConfigHandler) Put(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	blob, err := io.ReadAll(io.LimitReader(c.Request.Body, maxConfigBytes))
	if err != nil || len(blob) == 0 {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "configuration body is required")
		return
	}
	out, err := h.configService.Put(c.Request.Context(), tenantID, c.Param("workflowKey"), blob)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}
