// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/": {
            "get": {
                "produces": ["application/json"],
                "summary": "Welcome message",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/worker.Message"}}}
            }
        },
        "/predict": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Classify a feature vector and record it in the caller's session",
                "parameters": [
                    {"in": "header", "name": "X-Session-ID", "type": "string", "description": "Session identity for non-browser clients"},
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/worker.PredictRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.EventOutcome"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/worker.Error"}},
                    "409": {"description": "Timestamp precedes the last event", "schema": {"$ref": "#/definitions/worker.Error"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/worker.Error"}},
                    "503": {"description": "Classifier unavailable", "schema": {"$ref": "#/definitions/worker.Error"}}
                }
            }
        },
        "/session_summary": {
            "post": {
                "produces": ["application/json"],
                "summary": "Report the caller's session totals",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Summary"}}}
            },
            "get": {
                "produces": ["application/json"],
                "summary": "Report the caller's session totals",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Summary"}}}
            }
        },
        "/reset_session": {
            "post": {
                "produces": ["application/json"],
                "summary": "Reset the caller's session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/worker.Message"}}}
            },
            "get": {
                "produces": ["application/json"],
                "summary": "Reset the caller's session",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/worker.Message"}}}
            }
        },
        "/api/predictions": {
            "get": {
                "produces": ["application/json"],
                "summary": "Recent predictions, newest first",
                "parameters": [
                    {"in": "query", "name": "limit", "type": "integer", "description": "Maximum records (default 50)"},
                    {"in": "query", "name": "all", "type": "boolean", "description": "Include every session"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.PredictionRecord"}}}}
            }
        },
        "/api/events": {
            "get": {
                "produces": ["text/event-stream"],
                "summary": "Stream prediction, warning and reset events",
                "parameters": [{"in": "query", "name": "all", "type": "boolean", "description": "Include every session"}],
                "responses": {"200": {"description": "Event stream"}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Readiness and store health",
                "responses": {"200": {"description": "Ready"}, "503": {"description": "Unavailable"}}
            }
        }
    },
    "definitions": {
        "worker.Message": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "worker.Error": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "worker.PredictRequest": {
            "type": "object",
            "required": ["features"],
            "properties": {
                "features": {"type": "array", "items": {"type": "number"}},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "models.EventOutcome": {
            "type": "object",
            "properties": {
                "prediction": {"type": "integer"},
                "movement_type": {"type": "string"},
                "probabilities": {"type": "array", "items": {"type": "number"}},
                "unknown_movement_count": {"type": "integer"},
                "warning": {"type": "string", "x-nullable": true}
            }
        },
        "models.Summary": {
            "type": "object",
            "properties": {
                "total_walking_time": {"type": "number"},
                "total_running_time": {"type": "number"},
                "total_irregular_movements": {"type": "integer"},
                "session_duration": {"type": "number"},
                "durations": {"type": "object", "additionalProperties": {"type": "number"}}
            }
        },
        "models.PredictionRecord": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"},
                "outcome": {"$ref": "#/definitions/models.EventOutcome"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "dev",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "click-gait API",
	Description:      "Movement session tracking: dwell time per movement and persistent unknown movement warnings.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
