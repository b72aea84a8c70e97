// Package swagger 注册 blindbox-server 的 OpenAPI 文档，供 /swagger/*any 使用
package swagger

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
            "get": {
                "produces": ["application/json"],
                "tags": ["System"],
                "summary": "健康检查",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/v1/box-items/{id}/open": {
            "post": {
                "description": "同步返回藏品，铸造异步完成，mint_confirmed 可通过查询接口获取",
                "produces": ["application/json"],
                "tags": ["BlindBox"],
                "summary": "开盒",
                "parameters": [
                    {"type": "integer", "description": "Box Item ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "description": "Requester ID", "name": "X-User-Id", "in": "header", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "403": {"description": "Permission denied", "schema": {"$ref": "#/definitions/response.Response"}},
                    "409": {"description": "Already opening", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/v1/box-items/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["BlindBox"],
                "summary": "查询盲盒格子",
                "parameters": [
                    {"type": "integer", "description": "Box Item ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/v1/collectibles/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Collectible"],
                "summary": "查询藏品及铸造状态",
                "parameters": [
                    {"type": "integer", "description": "Collectible ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/v1/collectibles/{id}/operations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Collectible"],
                "summary": "藏品的上链流水",
                "parameters": [
                    {"type": "integer", "description": "Collectible ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/v1/users/{uid}/collectibles": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Collectible"],
                "summary": "用户藏品列表",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "uid", "in": "path", "required": true},
                    {"type": "integer", "default": 50, "description": "Limit", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/api/v1/users/{uid}/box-items": {
            "get": {
                "produces": ["application/json"],
                "tags": ["BlindBox"],
                "summary": "用户盲盒格子列表",
                "parameters": [
                    {"type": "integer", "description": "User ID", "name": "uid", "in": "path", "required": true},
                    {"type": "integer", "default": 50, "description": "Limit", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/admin/box-items": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "分配盲盒格子",
                "parameters": [
                    {"description": "Allocate Request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/request.AllocateBoxItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "400": {"description": "Bad request", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/admin/box-items/{id}/assign": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "绑定用户与订单",
                "parameters": [
                    {"type": "integer", "description": "Box Item ID", "name": "id", "in": "path", "required": true},
                    {"description": "Assign Request", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/request.AssignBoxItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}},
                    "409": {"description": "Illegal state or order already assigned", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/admin/reconcile": {
            "post": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "手动触发一次对账",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        },
        "/admin/reconcile/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Admin"],
                "summary": "最近一次对账统计",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/response.Response"}}
                }
            }
        }
    },
    "definitions": {
        "response.Response": {
            "type": "object",
            "properties": {
                "code": {"type": "integer"},
                "msg": {"type": "string"},
                "data": {}
            }
        },
        "request.AllocateBoxItemRequest": {
            "type": "object",
            "required": ["box_id", "collectible_name"],
            "properties": {
                "box_id": {"type": "integer"},
                "goods_id": {"type": "integer"},
                "collectible_name": {"type": "string", "maxLength": 255},
                "collectible_cover": {"type": "string", "maxLength": 512},
                "rarity": {"type": "string", "maxLength": 16},
                "purchase_price": {"type": "string", "example": "59.9"},
                "reference_price": {"type": "string", "example": "199"}
            }
        },
        "request.AssignBoxItemRequest": {
            "type": "object",
            "required": ["order_id", "owner_id"],
            "properties": {
                "owner_id": {"type": "integer"},
                "order_id": {"type": "string", "maxLength": 64}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Blind Box Server API",
	Description:      "盲盒开盒与藏品铸造对账服务",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
