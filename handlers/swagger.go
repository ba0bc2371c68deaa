package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, swaggerJSON)
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>leyesabiertas-core Swagger</title>
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

// Minimal OpenAPI document describing the document and comment endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "leyesabiertas-core", "version": "v0.1.0" },
  "paths": {
    "/api/v1/documents": {
      "get": { "summary": "List published documents", "parameters": [{"name":"page","in":"query","schema":{"type":"integer"}},{"name":"limit","in":"query","schema":{"type":"integer"}}], "responses": { "200": { "description": "one page of documents with their current versions" } } },
      "post": { "summary": "Create a document (accountable role)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"customForm":{"type":"string"},"content":{"type":"object"}}}}}}, "responses": { "201": { "description": "document with its first version" }, "403": { "description": "creation limit reached or role missing" } } }
    },
    "/api/v1/documents/{id}": {
      "get": { "summary": "Get a document with its current version", "responses": { "200": { "description": "document view" }, "404": { "description": "unknown document" } } },
      "put": { "summary": "Update a document (author only)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"published":{"type":"boolean"},"content":{"type":"object"},"contributions":{"type":"array","items":{"type":"string"}},"decorations":{"type":"array"}}}}}}, "responses": { "200": { "description": "updated view; contributions produce a new version" }, "403": { "description": "not the author" }, "409": { "description": "version conflict" } } }
    },
    "/api/v1/my-documents": {
      "get": { "summary": "List the caller's documents", "responses": { "200": { "description": "one page of authored documents" } } }
    },
    "/api/v1/documents/{id}/comments": {
      "get": { "summary": "List a document's comments, optionally narrowed by ids or field", "parameters": [{"name":"ids","in":"query","schema":{"type":"string"}},{"name":"field","in":"query","schema":{"type":"string"}},{"name":"resolved","in":"query","schema":{"type":"string"}},{"name":"withReplies","in":"query","schema":{"type":"string"}}], "responses": { "200": { "description": "matching comments" } } },
      "post": { "summary": "Comment on a commentable field", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"field":{"type":"string"},"content":{"type":"string"},"decoration":{"type":"object"}}}}}}, "responses": { "201": { "description": "created comment" }, "409": { "description": "document closed" } } }
    },
    "/api/v1/comments/{id}/resolve": {
      "post": { "summary": "Resolve a comment (document author only)", "responses": { "200": { "description": "resolved comment" } } }
    },
    "/api/v1/comments/{id}/reply": {
      "post": { "summary": "Reply to a comment (document author only)", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"reply":{"type":"string"}}}}}}, "responses": { "200": { "description": "comment with reply" } } }
    },
    "/api/v1/comments/{id}/like": {
      "post": { "summary": "Toggle a like on a comment", "responses": { "201": { "description": "like created" }, "200": { "description": "like removed" } } }
    },
    "/api/v1/community": {
      "get": { "summary": "Get community settings and permissions", "responses": { "200": { "description": "community" } } }
    },
    "/api/v1/customforms/{ref}": {
      "get": { "summary": "Resolve a custom form by id or slug", "responses": { "200": { "description": "form schema" }, "404": { "description": "unknown form" } } }
    },
    "/api/v1/me": {
      "get": { "summary": "Get user info", "responses": { "200": { "description": "user or claims" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
