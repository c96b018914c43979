package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"claimflow/internal/domain"
	"claimflow/internal/middleware"
)

// APIResponse is the standard envelope for all API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError holds error details in the response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK sends a 200 success response.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// RespondCreated sends a 201 success response.
func RespondCreated(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Success: true, Data: data})
}

// RespondError sends an error response with the given status code.
func RespondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, APIResponse{
		Success: false,
		Error:   &APIError{Code: code, Message: msg},
	})
}

// errorMappings lists sentinel errors in match order. An empty msg means the
// error text itself is safe to return.
var errorMappings = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "resource not found"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "forbidden"},
	{domain.ErrUnknownDocument, http.StatusBadRequest, "UNKNOWN_DOCUMENT", ""},
	{domain.ErrUnsupportedFileType, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE", "unsupported file type; allowed: pdf, jpg, png, tiff"},
	{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "file exceeds maximum allowed size"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT", ""},
}

// MapDomainError translates domain errors to HTTP status codes and error codes.
// A StageError keeps its code verbatim so the workflow engine can route on it.
func MapDomainError(err error) (status int, code, msg string) {
	var se *domain.StageError
	if errors.As(err, &se) {
		return http.StatusUnprocessableEntity, se.Code, se.Message
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.err) {
			continue
		}
		if m.msg == "" {
			return m.status, m.code, err.Error()
		}
		return m.status, m.code, m.msg
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", "an internal error occurred"
}

// HandleError maps a domain error and sends the appropriate error response.
func HandleError(c *gin.Context, err error) {
	status, code, msg := MapDomainError(err)
	requestID, _ := c.Get("request_id")
	switch {
	case status >= 500:
		zap.L().Error("handler: internal error", zap.Any("request_id", requestID), zap.Error(err))
	case status == http.StatusUnprocessableEntity:
		zap.L().Warn("handler: stage failed", zap.Any("request_id", requestID), zap.String("code", code), zap.Error(err))
	}
	RespondError(c, status, code, msg)
}

// tenantFromContext returns the tenant of the service token. Returns false if
// it is missing (error response already written).
func tenantFromContext(c *gin.Context) (string, bool) {
	tenantID, err := middleware.GetTenantID(c)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing tenant context")
		return "", false
	}
	return tenantID, true
}
