// Package docs registra el documento OpenAPI servido en /swagger.
// Se regenera con: swag init -g cmd/api/main.go
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
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/pets": {
            "get": {"tags": ["pets"], "summary": "Listar mis mascotas", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["pets"], "summary": "Registrar mascota", "responses": {"201": {"description": "Created"}}}
        },
        "/pets/{petID}/placement-requests": {
            "get": {"tags": ["placement-requests"], "summary": "Pedidos de ubicación de una mascota", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["placement-requests"], "summary": "Crear pedido de ubicación", "responses": {"201": {"description": "Created"}, "409": {"description": "Conflict"}}}
        },
        "/placement-requests/{id}/transfer-requests": {
            "post": {"tags": ["transfer-requests"], "summary": "Ofrecerse como helper", "responses": {"201": {"description": "Created"}}}
        },
        "/transfer-requests/{id}/accept": {
            "post": {"tags": ["transfer-requests"], "summary": "Aceptar oferta", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/transfer-requests/{id}/handover": {
            "post": {"tags": ["handovers"], "summary": "Iniciar entrega", "responses": {"201": {"description": "Created"}}}
        },
        "/handovers/{id}/complete": {
            "post": {"tags": ["handovers"], "summary": "Completar entrega", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/foster-assignments/{id}/return-handovers": {
            "post": {"tags": ["handovers"], "summary": "Iniciar devolución", "responses": {"201": {"description": "Created"}}}
        },
        "/pets/{petID}/ownership": {
            "get": {"tags": ["ownership"], "summary": "Historial de propiedad", "responses": {"200": {"description": "OK"}}}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Pet Custody API",
	Description:      "Ubicación, transferencia y devolución de mascotas entre dueños y helpers.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
