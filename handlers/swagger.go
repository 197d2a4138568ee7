package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the articles API.
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
    <title>articles-api Swagger</title>
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
  "info": { "title": "articles-api", "version": "v0.1.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Article": { "type": "object", "properties": {
        "id": {"type":"string"}, "title": {"type":"string"}, "author": {"type":"string"},
        "description": {"type":"string"}, "createdAt": {"type":"string","format":"date-time"},
        "updatedAt": {"type":"string","format":"date-time","nullable":true} } }
    }
  },
  "paths": {
    "/api/articles": {
      "get": { "summary": "List articles, newest first", "responses": { "200": { "description": "article summaries with preview and date" }, "502": { "description": "Failed to load articles" } } },
      "post": {
        "summary": "Create an article",
        "security": [ { "bearer": [] } ],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"author":{"type":"string"},"description":{"type":"string"}}}}}},
        "responses": { "201": { "description": "id and title of the new article" }, "400": { "description": "title missing" }, "401": { "description": "not signed in" } }
      }
    },
    "/api/articles/stream": {
      "get": { "summary": "Server-Sent Events of the article list", "responses": { "200": { "description": "snapshot and error events" } } }
    },
    "/api/articles/{id}": {
      "get": { "summary": "Get one article", "responses": { "200": { "description": "article and reading metadata" }, "404": { "description": "Article not found, with redirect hint" }, "502": { "description": "Unable to load article" } } },
      "patch": {
        "summary": "Update title or description",
        "security": [ { "bearer": [] } ],
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"title":{"type":"string"},"description":{"type":"string"}}}}}},
        "responses": { "200": { "description": "updated article" }, "400": { "description": "nothing to update" }, "404": { "description": "not found" } }
      },
      "delete": {
        "summary": "Delete an article; requires confirm=true",
        "security": [ { "bearer": [] } ],
        "parameters": [ { "name": "confirm", "in": "query", "schema": { "type": "boolean" } } ],
        "responses": { "204": { "description": "deleted" }, "409": { "description": "confirmation prompt" }, "502": { "description": "Failed to delete article" } }
      }
    },
    "/api/archive/articles/{id}": {
      "get": { "summary": "Read the copy archived when an article was deleted", "security": [ { "bearer": [] } ], "responses": { "200": { "description": "archived article and archivedAt" }, "404": { "description": "article not archived" }, "502": { "description": "article archive unavailable" } } }
    },
    "/auth/login": {
      "post": {
        "summary": "Sign in with email and password",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "access_token, refresh_token, user and expires_in" }, "401": { "description": "sign-in failed with message and code" }, "429": { "description": "sign-in already in progress" } }
      }
    },
    "/auth/register": {
      "post": { "summary": "Create a local account", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"email":{"type":"string"},"name":{"type":"string"},"password":{"type":"string"}}}}}}, "responses": { "201": { "description": "account created" }, "409": { "description": "email taken" } } }
    },
    "/auth/refresh": {
      "post": { "summary": "Refresh access token", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"}}}}}}, "responses": { "200": { "description": "access_token and expires_in" }, "401": { "description": "invalid refresh" } } }
    },
    "/auth/logout": {
      "post": { "summary": "Logout and invalidate refresh token; everywhere ends every session of the account", "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"refresh_token":{"type":"string"},"everywhere":{"type":"boolean"}}}}}}, "responses": { "200": { "description": "logged out" }, "401": { "description": "invalid refresh" }, "501": { "description": "session store cannot revoke by user" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "text exposition" } } } }
  }
}`
