package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"claimflow/internal/domain"
	"claimflow/internal/service"
)

// PipelineHandler exposes the pipeline stages to the workflow engine.
type PipelineHandler struct {
	pipelineService service.PipelineService
	maxUploadBytes  int64
}

// NewPipelineHandler creates a new PipelineHandler. maxUploadBytes bounds the
// bytes read from one multipart file; 0 disables the bound.
func NewPipelineHandler(pipelineService service.PipelineService, maxUploadBytes int64) *PipelineHandler {
	return &PipelineHandler{pipelineService: pipelineService, maxUploadBytes: maxUploadBytes}
}

// bindOptional binds a JSON body when one is sent. Returns false if the body
// is malformed (error response already written).
func bindOptional(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// StartTicket handles POST /api/v1/tickets
// @Summary Start a ticket
// @Description Issue a ticket id and create the pipeline instance (ID-generation stage)
// @Tags tickets
// @Accept json
// @Produce json
// @Param request body StartTicketRequest true "Workflow and initial documents"
// @Success 201 {object} Response{data=domain.PipelineInstance} "Ticket created"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 422 {object} ErrorResponseBody "Stage failed"
// @Security BearerAuth
// @Router /tickets [post]
func (h *PipelineHandler) StartTicket(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	var req StartTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	inst, err := h.pipelineService.StartTicket(c.Request.Context(), &service.StartTicketInput{
		TenantID:    tenantID,
		WorkflowKey: req.WorkflowKey,
		Filenames:   req.Filenames,
		Variables:   req.Variables,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, inst)
}

// GetTicket handles GET /api/v1/tickets/:ticketId
// @Summary Get a ticket
// @Description Get the pipeline context, variables and per-document state of a ticket
// @Tags tickets
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Success 200 {object} Response{data=domain.PipelineInstance} "Ticket"
// @Failure 404 {object} ErrorResponseBody "Ticket not found"
// @Security BearerAuth
// @Router /tickets/{ticketId} [get]
func (h *PipelineHandler) GetTicket(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	inst, err := h.pipelineService.GetTicket(c.Request.Context(), tenantID, c.Param("ticketId"))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, inst)
}

// UploadDocument handles POST /api/v1/tickets/:ticketId/documents
// @Summary Upload a claim document
// @Description Store a raw document (PDF, JPG, PNG, TIFF) for the ticket and register it
// @Tags tickets
// @Accept multipart/form-data
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param file formData file true "Document"
// @Success 201 {object} Response{data=UploadResponse} "Document stored"
// @Failure 400 {object} ErrorResponseBody "Missing file or unsupported type"
// @Failure 413 {object} ErrorResponseBody "File too large"
// @Failure 422 {object} ErrorResponseBody "Stage failed"
// @Security BearerAuth
// @Router /tickets/{ticketId}/documents [post]
func (h *PipelineHandler) UploadDocument(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return
	}
	defer func() { _ = file.Close() }()

	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return
	}
	var reader io.Reader = file
	if h.maxUploadBytes > 0 {
		reader = io.LimitReader(file, h.maxUploadBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "file could not be read")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if mediaType, _, parseErr := mime.ParseMediaType(contentType); parseErr == nil {
		contentType = mediaType
	}

	key, err := h.pipelineService.UploadDocument(c.Request.Context(), &service.UploadDocumentInput{
		TenantID:    tenantID,
		TicketID:    c.Param("ticketId"),
		Filename:    header.Filename,
		ContentType: contentType,
		Body:        body,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, UploadResponse{Filename: header.Filename, StorageKey: key.String()})
}

// RunAgent handles POST /api/v1/tickets/:ticketId/agents/:agentId/run
// @Summary Run one agent
// @Description Invoke a configured agent, store its envelope and project its response into variables
// @Tags stages
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param agentId path string true "Agent ID"
// @Param request body RunAgentRequest true "Stage and optional document"
// @Success 200 {object} Response{data=service.AgentOutcome} "Agent outcome"
// @Failure 422 {object} ErrorResponseBody "Stage failed; error.code carries the configured failure code"
// @Security BearerAuth
// @Router /tickets/{ticketId}/agents/{agentId}/run [post]
func (h *PipelineHandler) RunAgent(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	var req RunAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	out, err := h.pipelineService.RunAgent(c.Request.Context(), &service.RunAgentInput{
		TenantID:  tenantID,
		TicketID:  c.Param("ticketId"),
		StageName: req.StageName,
		AgentID:   c.Param("agentId"),
		Filename:  req.Filename,
		Loop:      req.Loop,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// RunStage handles POST /api/v1/tickets/:ticketId/stages/:stageName/run
// @Summary Run every agent of a stage
// @Description Invoke the enabled agents of a stage in configured order
// @Tags stages
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param stageName path string true "Stage name"
// @Param request body RunStageRequest false "Optional document"
// @Success 200 {object} Response{data=service.StageOutcome} "Stage outcome"
// @Failure 422 {object} ErrorResponseBody "Stage failed"
// @Security BearerAuth
// @Router /tickets/{ticketId}/stages/{stageName}/run [post]
func (h *PipelineHandler) RunStage(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	var req RunStageRequest
	if !bindOptional(c, &req) {
		return
	}

	out, err := h.pipelineService.RunStage(c.Request.Context(), &service.RunStageInput{
		TenantID:  tenantID,
		TicketID:  c.Param("ticketId"),
		StageName: c.Param("stageName"),
		Filename:  req.Filename,
		Loop:      req.Loop,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// RunScoring handles POST /api/v1/tickets/:ticketId/scoring/:scoringType
// @Summary Run a scoring agent
// @Description Build the scoring request from its template and project the score into variables
// @Tags stages
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param scoringType path string true "Scoring type" example(fraud)
// @Param request body RunScoringRequest false "Loop flag"
// @Success 200 {object} Response{data=service.AgentOutcome} "Scoring outcome"
// @Failure 422 {object} ErrorResponseBody "Stage failed"
// @Security BearerAuth
// @Router /tickets/{ticketId}/scoring/{scoringType} [post]
func (h *PipelineHandler) RunScoring(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	var req RunScoringRequest
	if !bindOptional(c, &req) {
		return
	}

	out, err := h.pipelineService.RunScoring(c.Request.Context(), &service.RunScoringInput{
		TenantID:    tenantID,
		TicketID:    c.Param("ticketId"),
		ScoringType: c.Param("scoringType"),
		Loop:        req.Loop,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// Consolidate handles POST /api/v1/tickets/:ticketId/consolidate
// @Summary Consolidate extraction results
// @Description Merge the per-document extraction results of a ticket into one structure
// @Tags stages
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Success 200 {object} Response{data=service.ConsolidationOutcome} "Consolidated structure"
// @Failure 422 {object} ErrorResponseBody "Nothing to merge"
// @Security BearerAuth
// @Router /tickets/{ticketId}/consolidate [post]
func (h *PipelineHandler) Consolidate(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	out, err := h.pipelineService.Consolidate(c.Request.Context(), &service.ConsolidateInput{
		TenantID: tenantID,
		TicketID: c.Param("ticketId"),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// RunSteps handles POST /api/v1/tickets/:ticketId/delegates/:delegateKey/run
// @Summary Run a generic delegate
// @Description Run the steps of a genericWorkflowDelegateConfigurations entry
// @Tags stages
// @Accept json
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param delegateKey path string true "Delegate key"
// @Param request body RunStepsRequest false "Optional stage override"
// @Success 200 {object} Response{data=service.StepsOutcome} "Steps outcome"
// @Failure 422 {object} ErrorResponseBody "Stage failed"
// @Security BearerAuth
// @Router /tickets/{ticketId}/delegates/{delegateKey}/run [post]
func (h *PipelineHandler) RunSteps(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	var req RunStepsRequest
	if !bindOptional(c, &req) {
		return
	}

	out, err := h.pipelineService.RunSteps(c.Request.Context(), &service.RunStepsInput{
		TenantID:    tenantID,
		TicketID:    c.Param("ticketId"),
		DelegateKey: c.Param("delegateKey"),
		StageName:   req.StageName,
		Loop:        req.Loop,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// Retrieve handles GET /api/v1/tickets/:ticketId/results
// @Summary Read a stored result
// @Description Read a stored envelope or artifact by key, or by stage and artifact name
// @Tags tickets
// @Produce json
// @Param ticketId path string true "Ticket ID"
// @Param key query string false "Storage key"
// @Param stage query string false "Stage name"
// @Param artifact query string false "Artifact name"
// @Param stageNumber query int false "Stage number (defaults to the current stage)"
// @Success 200 {object} Response{data=domain.Retrieved} "Normalized result"
// @Failure 403 {object} ErrorResponseBody "Key belongs to another ticket"
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Security BearerAuth
// @Router /tickets/{ticketId}/results [get]
func (h *PipelineHandler) Retrieve(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	input := &service.RetrieveInput{
		TenantID:     tenantID,
		TicketID:     c.Param("ticketId"),
		Key:          domain.StorageKey(c.Query("key")),
		StageName:    c.Query("stage"),
		ArtifactName: c.Query("artifact"),
	}
	if raw := c.Query("stageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "stageNumber must be a non-negative integer")
			return
		}
		input.StageNumber = &n
	}

	out, err := h.pipelineService.Retrieve(c.Request.Context(), input)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, out)
}

// Export handles GET /api/v1/tickets/:ticketId/export
// @Summary Export the consolidated structure
// @Description Download the latest consolidated structure as XLSX (default) or CSV
// @Tags tickets
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param ticketId path string true "Ticket ID"
// @Param format query string false "xlsx or csv" default(xlsx)
// @Success 200 {file} file "Export file"
// @Failure 404 {object} ErrorResponseBody "Ticket not consolidated"
// @Security BearerAuth
// @Router /tickets/{ticketId}/export [get]
func (h *PipelineHandler) Export(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	file, err := h.pipelineService.ExportConsolidated(c.Request.Context(), tenantID, c.Param("ticketId"), c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
