package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("resource not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrUnknownDocument      = errors.New("document not registered for ticket")
	ErrUnsupportedFileType  = errors.New("unsupported file type")
	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrAgentCallFailed      = errors.New("agent call failed")
	ErrStorage              = errors.New("storage failure")
	ErrNothingToMerge       = errors.New("no documents contributed to consolidation")
	ErrAgentDisabled        = errors.New("agent is disabled")
)

// ConfigurationMissingError names a required configuration entry that is absent.
type ConfigurationMissingError struct {
	What string
}

func (e *ConfigurationMissingError) Error() string {
	return fmt.Sprintf("configuration missing: %s", e.What)
}

func (e *ConfigurationMissingError) Unwrap() error { return ErrConfigurationMissing }

// MissingConfig creates a ConfigurationMissingError.
func MissingConfig(format string, args ...any) error {
	return &ConfigurationMissingError{What: fmt.Sprintf(format, args...)}
}

// AgentCallFailedError is returned for a non-success status or a transport
// failure. StatusCode is 0 when no response was received.
type AgentCallFailedError struct {
	AgentID    string
	StatusCode int
	Body       string
	Err        error
}

func (e *AgentCallFailedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("agent %s call failed: %v", e.AgentID, e.Err)
	}
	return fmt.Sprintf("agent %s returned status %d: %s", e.AgentID, e.StatusCode, truncate(e.Body, 300))
}

func (e *AgentCallFailedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAgentCallFailed, e.Err}
	}
	return []error{ErrAgentCallFailed}
}

// StorageError wraps an object-store I/O failure. Storage errors are always fatal.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// StageError is the fatal outcome reported to the workflow engine. Code is a
// machine-readable signal such as "fhirAnalyserFailed" and is passed through verbatim.
type StageError struct {
	Code    string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *StageError) Unwrap() error { return e.Err }

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
