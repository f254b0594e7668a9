// Package web serves the JSON API over gin. Handlers translate store and
// collaborator errors into stable status codes; persistence failures are
// logged server-side and surfaced as generic 500s.
package web

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arlo/taskmill/internal/auth"
	"github.com/arlo/taskmill/internal/db"
	"github.com/arlo/taskmill/internal/genai"
)

const userKey = "userID"

// Server is the taskmill web server
type Server struct {
	db     *db.DB
	auth   *auth.Manager
	gen    genai.Generator
	router *gin.Engine
}

// NewServer creates a new web server
func NewServer(database *db.DB, authManager *auth.Manager, gen genai.Generator) *Server {
	router := gin.Default()

	s := &Server{
		db:     database,
		auth:   authManager,
		gen:    gen,
		router: router,
	}

	router.GET("/api/health", s.handleHealth)

	router.POST("/api/auth/register", s.handleRegister)
	router.POST("/api/auth/login", s.handleLogin)

	api := router.Group("/api", s.requireUser)
	{
		api.GET("/auth/me", s.handleMe)

		api.GET("/projects", s.handleListProjects)
		api.POST("/projects", s.handleCreateProject)
		api.GET("/projects/:id", s.handleGetProject)
		api.PATCH("/projects/:id", s.handleUpdateProject)
		api.DELETE("/projects/:id", s.handleDeleteProject)

		api.POST("/projects/:id/tasks", s.handleAddTask)
		api.PATCH("/projects/:id/tasks/reorder", s.handleReorderTasks)
		api.PATCH("/projects/:id/tasks/:taskId", s.handleUpdateTask)
		api.DELETE("/projects/:id/tasks/:taskId", s.handleDeleteTask)

		api.POST("/projects/:id/tasks/:taskId/tracking", s.handleStartTracking)
		api.DELETE("/projects/:id/tasks/:taskId/tracking", s.handleStopTracking)

		api.POST("/projects/:id/tasks/:taskId/subtasks", s.handleAddSubtask)
		api.PATCH("/projects/:id/tasks/:taskId/subtasks/:subtaskId", s.handleUpdateSubtask)
		api.DELETE("/projects/:id/tasks/:taskId/subtasks/:subtaskId", s.handleDeleteSubtask)

		api.POST("/generate-tasks", s.handleGenerateTasks)
		api.POST("/refine-description", s.handleRefineDescription)
		api.POST("/projects/:id/ai-tasks", s.handleAITask)
		api.POST("/projects/:id/ai-reedit-tasks", s.handleReeditTasks)

		api.GET("/dashboard", s.handleDashboard)
	}

	return s
}

// Run starts the web server
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requireUser resolves the bearer token to a user id or rejects with 401.
func (s *Server) requireUser(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID, err := s.auth.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	c.Set(userKey, userID)
	c.Next()
}

func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}

// fail maps an error to a caller-facing status and message. Unknown errors
// are logged with their detail and returned as a generic failure.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, db.ErrInvalidInput), errors.Is(err, db.ErrInvalidReorder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrAlreadyTracking), errors.Is(err, db.ErrNotTracking):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, db.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, genai.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate tasks. Please try again."})
	default:
		log.Printf("internal error on %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
