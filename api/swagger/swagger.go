package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Clearance API",
        "description": "No-due clearance workflow for students, subject staff and administrative approvers",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Approver login and identity"},
        {"name": "Clearance", "description": "Clearance request lifecycle and approvals"},
        {"name": "Exports", "description": "Register export and no-due certificates"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate approver",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/clearance/requests": {
            "get": {
                "tags": ["Clearance"],
                "summary": "List clearance requests",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Clearance"],
                "summary": "Open a clearance request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClearanceRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Student already has an active request"}
                }
            }
        },
        "/clearance/requests/{id}": {
            "get": {
                "tags": ["Clearance"],
                "summary": "Status snapshot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/clearance/requests/{id}/approve": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Approve a checkpoint",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request already terminal"},
                    "422": {"description": "Unknown checkpoint"}
                }
            }
        },
        "/clearance/requests/{id}/reject": {
            "post": {
                "tags": ["Clearance"],
                "summary": "Reject a checkpoint",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Request already terminal"},
                    "422": {"description": "Unknown checkpoint"}
                }
            }
        },
        "/clearance/requests/{id}/certificate": {
            "get": {
                "tags": ["Exports"],
                "summary": "Issue a no-due certificate",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Clearance not yet approved"}
                }
            }
        },
        "/exports/register": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export the clearance register as CSV",
                "parameters": [
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "CSV payload"}
                }
            }
        },
        "/downloads": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a stored export via signed token",
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "CreateClearanceRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"}
            },
            "required": ["student_id"]
        },
        "DecisionRequest": {
            "type": "object",
            "properties": {
                "checkpoint_key": {"type": "string"},
                "remarks": {"type": "string"}
            },
            "required": ["checkpoint_key"]
        },
        "CheckpointView": {
            "type": "object",
            "properties": {
                "checkpoint_key": {"type": "string"},
                "group": {"type": "string"},
                "subject_name": {"type": "string"},
                "status": {"type": "string"},
                "approver_id": {"type": "string"},
                "remarks": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "StatusSnapshot": {
            "type": "object",
            "properties": {
                "request_id": {"type": "string"},
                "student_id": {"type": "string"},
                "subjects_status": {"type": "string"},
                "admin_status": {"type": "string"},
                "overall_status": {"type": "string"},
                "terminal": {"type": "boolean"},
                "previous_status": {"type": "string"},
                "checkpoints": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/CheckpointView"}
                },
                "warnings": {
                    "type": "array",
                    "items": {"type": "string"}
                }
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
