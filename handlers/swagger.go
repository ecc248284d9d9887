package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the JSON API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Modern Platform API · Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "modern-platform", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer" }, "session": { "type": "apiKey", "in": "cookie", "name": "mp_session" } },
    "schemas": {
      "Post": { "type": "object", "properties": { "id": {"type":"string"}, "user_id": {"type":"string"}, "title": {"type":"string"}, "content": {"type":"string"}, "image_url": {"type":"string"}, "created_at": {"type":"string","format":"date-time"} } },
      "NewPost": { "type": "object", "required": ["title","content"], "properties": { "title": {"type":"string"}, "content": {"type":"string"}, "image_url": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/v1/session": { "get": { "summary": "Signed-in user or null", "responses": { "200": { "description": "user" } } } },
    "/api/v1/posts": {
      "get": {
        "summary": "List posts with authors",
        "parameters": [
          {"name":"q","in":"query","schema":{"type":"string"}},
          {"name":"date","in":"query","schema":{"type":"string","enum":["today","week","month","year"]}},
          {"name":"sort","in":"query","schema":{"type":"string","enum":["recent","oldest"]}}
        ],
        "responses": { "200": { "description": "posts" }, "502": { "description": "backend failure" } }
      },
      "post": {
        "summary": "Create a post",
        "security": [{"bearer":[]},{"session":[]}],
        "requestBody": { "content": { "application/json": { "schema": {"$ref":"#/components/schemas/NewPost"} } } },
        "responses": { "201": { "description": "created post" }, "401": { "description": "not signed in" }, "422": { "description": "validation failed" } }
      }
    },
    "/api/v1/posts/{id}": {
      "delete": {
        "summary": "Delete an own post",
        "security": [{"bearer":[]},{"session":[]}],
        "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}],
        "responses": { "204": { "description": "deleted" }, "404": { "description": "no such post of the caller" } }
      }
    },
    "/api/v1/users/{id}/posts": {
      "get": { "summary": "Posts of one user", "parameters": [{"name":"id","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "200": { "description": "posts" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
