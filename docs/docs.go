// Package docs holds the OpenAPI description served at /swagger.
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
        "/api/chat/history": {
            "get": {
                "description": "Most recent chat messages, newest first",
                "produces": ["application/json"],
                "tags": ["chat"],
                "summary": "Chat history",
                "parameters": [
                    {"type": "integer", "description": "Maximum number of messages", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/ChatMessage"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "List products",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Product"}}}
                }
            },
            "post": {
                "security": [{"SessionCookie": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Create product",
                "parameters": [
                    {"description": "Product", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProductRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Product"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/products/{id}": {
            "patch": {
                "security": [{"SessionCookie": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Update product",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true},
                    {"description": "Fields to change", "name": "product", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateProductRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Product"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            },
            "delete": {
                "security": [{"SessionCookie": []}],
                "tags": ["products"],
                "summary": "Delete product",
                "parameters": [
                    {"type": "integer", "description": "Product ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register",
                "parameters": [
                    {"description": "Account", "name": "account", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Log in",
                "parameters": [
                    {"description": "Credentials", "name": "credentials", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/logout": {
            "post": {
                "security": [{"SessionCookie": []}],
                "tags": ["auth"],
                "summary": "Log out",
                "responses": {
                    "204": {"description": "No Content"},
                    "401": {"description": "Not authenticated"}
                }
            }
        },
        "/api/verify": {
            "get": {
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Verify email",
                "parameters": [
                    {"type": "string", "description": "Verification token", "name": "token", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/VerifyResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/user": {
            "get": {
                "security": [{"SessionCookie": []}],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get current user",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}},
                    "401": {"description": "Not authenticated"}
                }
            },
            "patch": {
                "security": [{"SessionCookie": []}],
                "description": "Updates username and/or email. Any admin flag in the body is ignored.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Update profile",
                "parameters": [
                    {"description": "Profile fields", "name": "profile", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/User"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Not authenticated"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ErrorResponse"}}
                }
            }
        },
        "/api/user/stats": {
            "get": {
                "security": [{"SessionCookie": []}],
                "description": "Daily execution buckets for the current user, oldest first",
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Get execution statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/UserStat"}}},
                    "401": {"description": "Not authenticated"}
                }
            }
        },
        "/api/user/executions": {
            "post": {
                "security": [{"SessionCookie": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["users"],
                "summary": "Record a task execution",
                "parameters": [
                    {"description": "Execution result", "name": "execution", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecordExecutionRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/UserStat"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/ErrorResponse"}},
                    "401": {"description": "Not authenticated"}
                }
            }
        }
    },
    "definitions": {
        "ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "Error message"}}
        },
        "ChatMessage": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 101},
                "userId": {"type": "integer", "example": 42},
                "content": {"type": "string", "example": "Hi, is the new build out?"},
                "timestamp": {"type": "string", "format": "date-time"},
                "isAdmin": {"type": "boolean"}
            }
        },
        "Product": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 1},
                "name": {"type": "string", "example": "Luna Executor"},
                "description": {"type": "string"},
                "price": {"type": "number", "example": 9.99},
                "imageUrl": {"type": "string"},
                "version": {"type": "string", "example": "2.4.1"},
                "downloadUrl": {"type": "string"},
                "badge": {"type": "string"},
                "badgeVariant": {"type": "string"},
                "buttonText": {"type": "string"},
                "buttonVariant": {"type": "string"},
                "features": {"type": "array", "items": {"type": "string"}},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "CreateProductRequest": {
            "type": "object",
            "required": ["name", "description", "price"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "number", "description": "Number or numeric string", "example": 9.99},
                "imageUrl": {"type": "string"},
                "version": {"type": "string"},
                "downloadUrl": {"type": "string"},
                "badge": {"type": "string"},
                "badgeVariant": {"type": "string"},
                "buttonText": {"type": "string"},
                "buttonVariant": {"type": "string"},
                "features": {"type": "array", "items": {"type": "string"}}
            }
        },
        "User": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "example": 42},
                "username": {"type": "string", "example": "lunafan"},
                "email": {"type": "string", "example": "luna@example.com"},
                "isVerified": {"type": "boolean"},
                "isAdmin": {"type": "boolean"},
                "memberSince": {"type": "string", "format": "date-time"},
                "lastLogin": {"type": "string", "format": "date-time"},
                "taskCount": {"type": "integer"},
                "successRate": {"type": "number"}
            }
        },
        "UserStat": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "userId": {"type": "integer"},
                "date": {"type": "string", "format": "date-time"},
                "executions": {"type": "integer"},
                "successCount": {"type": "integer"},
                "failureCount": {"type": "integer"}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "required": ["username", "email", "password"],
            "properties": {
                "username": {"type": "string", "example": "lunafan"},
                "email": {"type": "string", "example": "luna@example.com"},
                "password": {"type": "string", "minLength": 8, "maxLength": 72}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password"],
            "properties": {
                "username": {"type": "string", "description": "Username or email"},
                "password": {"type": "string"}
            }
        },
        "UpdateProfileRequest": {
            "type": "object",
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "RecordExecutionRequest": {
            "type": "object",
            "required": ["success"],
            "properties": {"success": {"type": "boolean"}}
        },
        "VerifyResponse": {
            "type": "object",
            "properties": {"verified": {"type": "boolean"}}
        }
    },
    "securityDefinitions": {
        "SessionCookie": {
            "type": "apiKey",
            "name": "luna_sid",
            "in": "cookie"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LunaExecutor API",
	Description:      "Backend for the LunaExecutor site: products, accounts, dashboard statistics and live support chat.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
