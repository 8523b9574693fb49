package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA ADP Exams API",
        "description": "Exam table grouping and reoptimization",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "ExamTables", "description": "Exam table grouping and reoptimization runs"}
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
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/api/v1/exam-tables/reoptimize": {
            "post": {
                "tags": ["ExamTables"],
                "summary": "Merge unassigned exam tables into compatible groups",
                "description": "Runs one batch. With dryRun=true nothing is persisted and merges are reported as simulated.",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/ReoptimizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReoptimizeEnvelope"}},
                    "400": {"description": "Invalid filters", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Run rolled back", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exam-tables/reoptimize/runs/{id}": {
            "get": {
                "tags": ["ExamTables"],
                "summary": "Fetch a previous reoptimization report",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ReoptimizeEnvelope"}},
                    "404": {"description": "Not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exam-tables/reoptimize/runs/{id}/export": {
            "get": {
                "tags": ["ExamTables"],
                "summary": "Download a reoptimization report as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Rendered report", "schema": {"type": "file"}},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or expired", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ReoptimizeRequest": {
            "type": "object",
            "properties": {
                "dryRun": {"type": "boolean"},
                "dateFilter": {"type": "string", "format": "date", "example": "2024-11-04"},
                "shiftFilter": {"type": "integer", "enum": [1, 2]}
            }
        },
        "ReoptimizeSummary": {
            "type": "object",
            "properties": {
                "runId": {"type": "string"},
                "dryRun": {"type": "integer", "enum": [0, 1]},
                "movements": {"type": "integer"},
                "unplacedCount": {"type": "integer"},
                "dateFilter": {"type": "string"},
                "shiftFilter": {"type": "integer"},
                "startedAt": {"type": "string", "format": "date-time"},
                "durationMs": {"type": "integer"}
            }
        },
        "TableMovement": {
            "type": "object",
            "properties": {
                "tableNumber": {"type": "integer"},
                "date": {"type": "string"},
                "shift": {"type": "integer"},
                "areaId": {"type": "integer"},
                "groupId": {"type": "string"},
                "before": {"type": "array", "items": {"type": "integer", "x-nullable": true}},
                "after": {"type": "array", "items": {"type": "integer", "x-nullable": true}},
                "action": {"type": "string", "enum": ["agregado_a_grupo", "simular_agregar_a_grupo", "ya_estaba_en_grupo_borrar_single"]}
            }
        },
        "UnplacedTable": {
            "type": "object",
            "properties": {
                "tableNumber": {"type": "integer"},
                "date": {"type": "string"},
                "shift": {"type": "integer"},
                "areaId": {"type": "integer"},
                "reason": {"type": "string", "enum": ["no_groups_in_slot", "table_not_found", "area_inconsistente", "no_compatible_group", "group_no_free_slot", "grupo_desaparecido"]},
                "subReasons": {"type": "array", "items": {"type": "string", "enum": ["group_completo", "area_mismatch", "student_conflict", "teacher_unavailable", "table_not_found", "slot_mismatch"]}}
            }
        },
        "ReoptimizeResponse": {
            "type": "object",
            "properties": {
                "summary": {"$ref": "#/definitions/ReoptimizeSummary"},
                "detail": {
                    "type": "object",
                    "properties": {
                        "movements": {"type": "array", "items": {"$ref": "#/definitions/TableMovement"}},
                        "unplaced": {"type": "array", "items": {"$ref": "#/definitions/UnplacedTable"}}
                    }
                }
            }
        },
        "ReoptimizeEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/ReoptimizeResponse"}
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
