package handler

// Swagger type definitions for API documentation.
// These types are used by swag to generate OpenAPI documentation.

// --- Request Types ---

// StartTicketRequest represents the start ticket request body.
type StartTicketRequest struct {
	WorkflowKey string         `json:"workflowKey" binding:"required" example:"claims-intake"`
	Filenames   []string       `json:"filenames" example:"hospital-bill.pdf,discharge-summary.pdf"`
	Variables   map[string]any `json:"variables"`
}

// RunAgentRequest represents the run agent request body.
type RunAgentRequest struct {
	StageName string `json:"stageName" binding:"required" example:"classification"`
	Filename  string `json:"filename" example:"hospital-bill.pdf"`
	Loop      bool   `json:"loop" example:"false"`
}

// RunStageRequest represents the run stage request body.
type RunStageRequest struct {
	Filename string `json:"filename" example:"hospital-bill.pdf"`
	Loop     bool   `json:"loop" example:"false"`
}

// RunScoringRequest represents the run scoring request body.
type RunScoringRequest struct {
	Loop bool `json:"loop" example:"false"`
}

// RunStepsRequest represents the run delegate steps request body.
type RunStepsRequest struct {
	StageName string `json:"stageName" example:"policyLookup"`
	Loop      bool   `json:"loop" example:"false"`
}

// --- Response Types ---

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty" example:"database not reachable"`
}

// UploadResponse represents a stored document.
type UploadResponse struct {
	Filename   string `json:"filename" example:"hospital-bill.pdf"`
	StorageKey string `json:"storageKey" example:"claims/acme/claims-intake/CLM000001/0_idGeneration/userdoc/uploaded/hospital-bill.pdf"`
}

// Response wraps a successful response with data.
type Response struct {
	Success bool        `json:"success" example:"true"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponseBody wraps an error response.
type ErrorResponseBody struct {
	Success bool     `json:"success" example:"false"`
	Error   APIError `json:"error"`
}
