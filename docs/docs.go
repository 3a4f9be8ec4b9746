// Package docs holds the Swagger specification served at /swagger in development.
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
		"/healthcheck": {
			"get": {
				"summary": "Health check",
				"tags": [
					"health"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					}
				}
			}
		},
		"/users/register": {
			"post": {
				"summary": "Register a new user",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"400": {
						"description": "Validation error",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"409": {
						"description": "Email or username taken",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.RegisterRequest"
						}
					}
				]
			}
		},
		"/users/login": {
			"post": {
				"summary": "User login",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"400": {
						"description": "Invalid credentials",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					},
					"404": {
						"description": "User does not exist",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.LoginRequest"
						}
					}
				]
			}
		},
		"/users/logout": {
			"post": {
				"summary": "Logout",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/current-user": {
			"get": {
				"summary": "Current user",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/verify-email/{verificationToken}": {
			"get": {
				"summary": "Verify email",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"400": {
						"description": "Invalid or expired token",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "verificationToken",
						"name": "verificationToken",
						"in": "path",
						"required": true
					}
				]
			}
		},
		"/users/resend-email-verification": {
			"post": {
				"summary": "Resend verification email",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"409": {
						"description": "Already verified",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		},
		"/users/refresh-token": {
			"post": {
				"summary": "Refresh tokens",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"401": {
						"description": "Unauthorized",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": false,
						"schema": {
							"$ref": "#/definitions/auth.RefreshRequest"
						}
					}
				]
			}
		},
		"/users/forgot-password": {
			"post": {
				"summary": "Forgot password",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"400": {
						"description": "Validation error",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.ForgotPasswordRequest"
						}
					}
				]
			}
		},
		"/users/reset-password/{resetToken}": {
			"post": {
				"summary": "Reset password",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"400": {
						"description": "Invalid or expired token",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"type": "string",
						"description": "resetToken",
						"name": "resetToken",
						"in": "path",
						"required": true
					},
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.ResetPasswordRequest"
						}
					}
				]
			}
		},
		"/users/change-password": {
			"post": {
				"summary": "Change password",
				"tags": [
					"users"
				],
				"produces": [
					"application/json"
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/httputil.Response"
						}
					},
					"400": {
						"description": "Old password does not match",
						"schema": {
							"$ref": "#/definitions/httputil.ErrorResponse"
						}
					}
				},
				"consumes": [
					"application/json"
				],
				"parameters": [
					{
						"description": "Request body",
						"name": "request",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/auth.ChangePasswordRequest"
						}
					}
				],
				"security": [
					{
						"BearerAuth": []
					}
				]
			}
		}
	},
	"definitions": {
		"auth.RegisterRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"username": {
					"type": "string"
				},
				"password": {
					"type": "string"
				},
				"role": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"username",
				"password"
			]
		},
		"auth.LoginRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				},
				"password": {
					"type": "string"
				}
			},
			"required": [
				"email",
				"password"
			]
		},
		"auth.RefreshRequest": {
			"type": "object",
			"properties": {
				"refreshToken": {
					"type": "string"
				}
			}
		},
		"auth.ForgotPasswordRequest": {
			"type": "object",
			"properties": {
				"email": {
					"type": "string"
				}
			},
			"required": [
				"email"
			]
		},
		"auth.ResetPasswordRequest": {
			"type": "object",
			"properties": {
				"newPassword": {
					"type": "string"
				}
			},
			"required": [
				"newPassword"
			]
		},
		"auth.ChangePasswordRequest": {
			"type": "object",
			"properties": {
				"oldPassword": {
					"type": "string"
				},
				"newPassword": {
					"type": "string"
				}
			},
			"required": [
				"oldPassword",
				"newPassword"
			]
		},
		"httputil.Response": {
			"type": "object",
			"properties": {
				"statusCode": {
					"type": "integer"
				},
				"data": {},
				"message": {
					"type": "string"
				},
				"success": {
					"type": "boolean"
				}
			}
		},
		"httputil.ErrorResponse": {
			"type": "object",
			"properties": {
				"success": {
					"type": "boolean"
				},
				"message": {
					"type": "string"
				},
				"code": {
					"type": "string"
				},
				"errors": {
					"type": "array",
					"items": {
						"type": "string"
					}
				},
				"stack": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and the access token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8000",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Task Manager Auth API",
	Description:      "Registration, login, email verification, password reset and JWT sessions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
