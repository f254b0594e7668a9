package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arlo/taskmill/internal/model"
)

func (s *Server) handleListProjects(c *gin.Context) {
	archived := c.Query("archived") == "true"
	projects, err := s.db.ListProjects(currentUser(c), archived)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req model.NewProject
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	project, err := s.db.CreateProject(currentUser(c), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

func (s *Server) handleGetProject(c *gin.Context) {
	project, err := s.db.GetProject(currentUser(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

type projectPatchRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Archived    *bool   `json:"archived"`
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var req projectPatchRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	patch := model.ProjectPatch{Name: req.Name, Description: req.Description, Archived: req.Archived}
	project, err := s.db.UpdateProject(currentUser(c), c.Param("id"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": project})
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.db.DeleteProject(currentUser(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDashboard(c *gin.Context) {
	stats, err := s.db.DashboardStats(currentUser(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
