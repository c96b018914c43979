// Package docs registers the OpenAPI document served under /swagger.
// Regenerate the template with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tickets": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tickets"],
                "summary": "Start a ticket",
                "parameters": [
                    {"description": "Workflow and initial documents", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.StartTicketRequest"}}
                ],
                "responses": {
                    "201": {"description": "Ticket created", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "422": {"description": "Stage failed", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tickets"],
                "summary": "Get a ticket",
                "parameters": [{"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Ticket", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "404": {"description": "Ticket not found", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/documents": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["tickets"],
                "summary": "Upload a claim document",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "file", "description": "Document", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Document stored", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Missing file or unsupported type", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "413": {"description": "File too large", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/agents/{agentId}/run": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Run one agent",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "string", "description": "Agent ID", "name": "agentId", "in": "path", "required": true},
                    {"description": "Stage and optional document", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RunAgentRequest"}}
                ],
                "responses": {
                    "200": {"description": "Agent outcome", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "422": {"description": "Stage failed", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/stages/{stageName}/run": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Run every agent of a stage",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "string", "description": "Stage name", "name": "stageName", "in": "path", "required": true},
                    {"description": "Optional document", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.RunStageRequest"}}
                ],
                "responses": {
                    "200": {"description": "Stage outcome", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "422": {"description": "Stage failed", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/scoring/{scoringType}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Run a scoring agent",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "string", "description": "Scoring type", "name": "scoringType", "in": "path", "required": true},
                    {"description": "Loop flag", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.RunScoringRequest"}}
                ],
                "responses": {
                    "200": {"description": "Scoring outcome", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "422": {"description": "Stage failed", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/consolidate": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Consolidate extraction results",
                "parameters": [{"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Consolidated structure", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "422": {"description": "Nothing to merge", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/delegates/{delegateKey}/run": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Run a generic delegate",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "string", "description": "Delegate key", "name": "delegateKey", "in": "path", "required": true},
                    {"description": "Optional stage override", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/handler.RunStepsRequest"}}
                ],
                "responses": {
                    "200": {"description": "Steps outcome", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "422": {"description": "Stage failed", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/results": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tickets"],
                "summary": "Read a stored result",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "string", "description": "Storage key", "name": "key", "in": "query"},
                    {"type": "string", "description": "Stage name", "name": "stage", "in": "query"},
                    {"type": "string", "description": "Artifact name", "name": "artifact", "in": "query"},
                    {"type": "integer", "description": "Stage number (defaults to the current stage)", "name": "stageNumber", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Normalized result", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "403": {"description": "Key belongs to another ticket", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/tickets/{ticketId}/export": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "text/csv"],
                "tags": ["tickets"],
                "summary": "Export the consolidated structure",
                "parameters": [
                    {"type": "string", "description": "Ticket ID", "name": "ticketId", "in": "path", "required": true},
                    {"type": "string", "default": "xlsx", "description": "xlsx or csv", "name": "format", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "Export file", "schema": {"type": "file"}},
                    "404": {"description": "Ticket not consolidated", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        },
        "/workflows/{workflowKey}/config": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["workflows"],
                "summary": "Get a workflow configuration",
                "parameters": [{"type": "string", "description": "Workflow key", "name": "workflowKey", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "Configuration", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["workflows"],
                "summary": "Store a workflow configuration",
                "parameters": [
                    {"type": "string", "description": "Workflow key", "name": "workflowKey", "in": "path", "required": true},
                    {"description": "Workflow configuration", "name": "config", "in": "body", "required": true, "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "Stored", "schema": {"$ref": "#/definitions/handler.Response"}},
                    "400": {"description": "Invalid configuration", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}},
                    "403": {"description": "Admin role required", "schema": {"$ref": "#/definitions/handler.ErrorResponseBody"}}
                }
            }
        }
    },
    "definitions": {
        "handler.ErrorResponseBody": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": false},
                "error": {"$ref": "#/definitions/handler.APIError"}
            }
        },
        "handler.APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "fhirAnalyserFailed"},
                "message": {"type": "string"}
            }
        },
        "handler.Response": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean", "example": true},
                "data": {}
            }
        },
        "handler.StartTicketRequest": {
            "type": "object",
            "required": ["workflowKey"],
            "properties": {
                "workflowKey": {"type": "string", "example": "claims-intake"},
                "filenames": {"type": "array", "items": {"type": "string"}},
                "variables": {"type": "object", "additionalProperties": {}}
            }
        },
        "handler.RunAgentRequest": {
            "type": "object",
            "required": ["stageName"],
            "properties": {
                "stageName": {"type": "string", "example": "classification"},
                "filename": {"type": "string", "example": "hospital-bill.pdf"},
                "loop": {"type": "boolean"}
            }
        },
        "handler.RunStageRequest": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "loop": {"type": "boolean"}
            }
        },
        "handler.RunScoringRequest": {
            "type": "object",
            "properties": {"loop": {"type": "boolean"}}
        },
        "handler.RunStepsRequest": {
            "type": "object",
            "properties": {
                "stageName": {"type": "string", "example": "policyLookup"},
                "loop": {"type": "boolean"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Claimflow API",
	Description:      "Claim document pipeline driven by an external workflow engine.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
