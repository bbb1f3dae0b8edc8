// Package docs registers the OpenAPI description served at /v1/swagger.
// Regenerate with: swag init -g cmd/api/main.go
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
        "/health": {
            "get": {"tags": ["system"], "summary": "Health check", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "503": {"description": "Service Unavailable"}}}
        },
        "/wizards/{kind}": {
            "post": {"tags": ["wizards"], "summary": "Start a wizard", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Wizard kind", "name": "kind", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/wizards/next": {
            "post": {"tags": ["wizards"], "summary": "Advance a wizard", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/wizards/back": {
            "post": {"tags": ["wizards"], "summary": "Go back one step", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/wizards/goto/{step}": {
            "post": {"tags": ["wizards"], "summary": "Jump to a step", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "1-based step", "name": "step", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/wizards/fields": {
            "post": {"tags": ["wizards"], "summary": "Update wizard fields", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/wizards/submit": {
            "post": {"tags": ["wizards"], "summary": "Submit a wizard", "consumes": ["multipart/form-data"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Session JSON", "name": "session", "in": "formData", "required": true},
                    {"type": "file", "description": "Resume (PDF/DOC/DOCX, max 5MB)", "name": "resume", "in": "formData"},
                    {"type": "file", "description": "Company logo (PNG/JPEG/SVG, max 2MB)", "name": "logo", "in": "formData"}
                ],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"},
                    "422": {"description": "Unprocessable Entity"}, "429": {"description": "Too Many Requests"}, "502": {"description": "Bad Gateway"}}}
        },
        "/submissions/{entityId}/enrichment": {
            "delete": {"tags": ["wizards"], "summary": "Cancel pending enrichment", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Submitted entity", "name": "entityId", "in": "path", "required": true},
                    {"type": "string", "description": "Token returned by the submission", "name": "X-Cancel-Token", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "429": {"description": "Too Many Requests"}}}
        },
        "/auth/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Get current user", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/jobs": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["jobs"], "summary": "Create a new job", "consumes": ["application/json"], "produces": ["application/json"],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "403": {"description": "Forbidden"}}}
        },
        "/jobs/{id}": {
            "get": {"tags": ["jobs"], "summary": "Get job details", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/jobs/{id}/close": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["jobs"], "summary": "Close a job", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}}
        },
        "/jobs/{id}/applications": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "List a job's applications", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}}
        },
        "/jobs/{id}/applications/export": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Export a job's applications",
                "produces": ["application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [{"type": "string", "description": "Job ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}}
        },
        "/applications/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Get application", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not Found"}}}
        },
        "/applications/{id}/status": {
            "patch": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Change application status",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Expected version", "name": "If-Match", "in": "header"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/applications/{id}/stage": {
            "patch": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Change application stage",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Expected version", "name": "If-Match", "in": "header"}
                ],
                "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "422": {"description": "Unprocessable Entity"}}}
        },
        "/applications/{id}/notes": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "List notes", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["applications"], "summary": "Add a note", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/internal/enrichment/applications/{id}": {
            "post": {"tags": ["internal"], "summary": "Deliver an application analysis", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Application ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Shared secret", "name": "X-Enrichment-Secret", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "401": {"description": "Unauthorized"}, "404": {"description": "Not Found"}}}
        },
        "/internal/enrichment/candidates/{id}": {
            "post": {"tags": ["internal"], "summary": "Deliver a candidate resume analysis", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Candidate user ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "Shared secret", "name": "X-Enrichment-Secret", "in": "header", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "Recruiting Pipeline API",
	Description:      "Wizard submissions and the recruiter application lifecycle.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
