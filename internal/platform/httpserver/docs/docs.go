// Package docs serves the OpenAPI document for the HTTP API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"schemes": {{ marshal .Schemes }},
	"paths": {
		"/healthz": {
			"get": {
				"summary": "Liveness probe",
				"tags": [
					"health"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				}
			}
		},
		"/v1/reports": {
			"post": {
				"summary": "File a report",
				"tags": [
					"reports"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/FileReportRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created"
					},
					"400": {
						"description": "Validation error"
					},
					"401": {
						"description": "Missing credential"
					},
					"403": {
						"description": "Banned participant"
					},
					"409": {
						"description": "Duplicate open report"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"get": {
				"summary": "List reports by confirm votes",
				"tags": [
					"reports"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "status",
						"in": "query",
						"type": "string",
						"enum": [
							"pending",
							"confirmed",
							"dismissed"
						]
					},
					{
						"name": "limit",
						"in": "query",
						"type": "integer"
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/reports/{report_id}": {
			"get": {
				"summary": "Get a report",
				"tags": [
					"reports"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "report_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not found"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/reports/{report_id}/vote": {
			"post": {
				"summary": "Vote on a report",
				"tags": [
					"reports"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "report_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/CastVoteRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Validation error"
					},
					"404": {
						"description": "Not found"
					},
					"409": {
						"description": "Duplicate vote or already resolved"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/reports/{report_id}/votes": {
			"get": {
				"summary": "List the votes on a report",
				"tags": [
					"reports"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "report_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"404": {
						"description": "Not found"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/admin/{target_type}/{target_id}": {
			"delete": {
				"summary": "Delete a target",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "target_type",
						"in": "path",
						"required": true,
						"type": "string",
						"description": "post, skill, knowledge or agent"
					},
					{
						"name": "target_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					},
					{
						"name": "body",
						"in": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/AdminReasonRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Not an administrator"
					},
					"404": {
						"description": "Not found"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/admin/ban/{agent_id}": {
			"post": {
				"summary": "Ban an agent",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "agent_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					},
					{
						"name": "body",
						"in": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/AdminReasonRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Not an administrator"
					},
					"404": {
						"description": "Agent not found"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			},
			"delete": {
				"summary": "Lift a ban",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "agent_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Not an administrator"
					},
					"404": {
						"description": "Agent is not banned"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/admin/bans": {
			"get": {
				"summary": "List banned agents",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "limit",
						"in": "query",
						"type": "integer"
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"403": {
						"description": "Not an administrator"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/v1/admin/reports/{report_id}/verdict": {
			"post": {
				"summary": "Close a report by verdict",
				"tags": [
					"admin"
				],
				"produces": [
					"application/json"
				],
				"parameters": [
					{
						"name": "report_id",
						"in": "path",
						"required": true,
						"type": "string",
						"description": ""
					},
					{
						"name": "body",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/AdminVerdictRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK"
					},
					"400": {
						"description": "Validation error"
					},
					"403": {
						"description": "Not an administrator"
					},
					"404": {
						"description": "Not found"
					},
					"409": {
						"description": "Already resolved"
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		}
	},
	"definitions": {
		"FileReportRequest": {
			"type": "object",
			"properties": {
				"target_type": {
					"type": "string"
				},
				"target_id": {
					"type": "string"
				},
				"reason": {
					"type": "string"
				}
			}
		},
		"CastVoteRequest": {
			"type": "object",
			"properties": {
				"vote": {
					"type": "string"
				}
			}
		},
		"AdminReasonRequest": {
			"type": "object",
			"properties": {
				"reason": {
					"type": "string"
				}
			}
		},
		"AdminVerdictRequest": {
			"type": "object",
			"properties": {
				"outcome": {
					"type": "string"
				},
				"reason": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Tribunal API",
	Description:      "Community reports, consensus voting and administrative moderation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
