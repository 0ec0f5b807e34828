// Package docs holds the Swagger document for the @Summary/@Router
// annotations on internal/adminsrv's handlers. Hand-maintained here in
// place of running `swag init` (the toolchain is not invoked as part
// of this build), but follows swag's own generated-file shape exactly
// so internal/adminsrv's httpSwagger.Handler serves it unmodified.
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
        "/healthz": {
            "get": {
                "description": "Always returns 200 while the worker process is running.",
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object"}
                    }
                }
            }
        },
        "/registry": {
            "get": {
                "description": "Lists every scanner name currently registered on this worker.",
                "produces": ["application/json"],
                "tags": ["ops"],
                "summary": "Registered scanner names",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object"}
                    }
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so filescand can modify it at runtime.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "filescand admin API",
	Description:      "Read-only operator status surface for a file-scanning dispatch worker.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
