package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arlo/taskmill/internal/model"
)

func (s *Server) handleAddTask(c *gin.Context) {
	var req model.NewTask
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.db.AddTask(currentUser(c), c.Param("id"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch model.TaskPatch
	if err := c.BindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := s.db.UpdateTask(currentUser(c), c.Param("id"), c.Param("taskId"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.db.DeleteTask(currentUser(c), c.Param("id"), c.Param("taskId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type reorderRequest struct {
	Orders []model.TaskOrder `json:"taskOrders"`
}

func (s *Server) handleReorderTasks(c *gin.Context) {
	var req reorderRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.db.ReorderTasks(currentUser(c), c.Param("id"), req.Orders); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleStartTracking(c *gin.Context) {
	task, err := s.db.StartTracking(currentUser(c), c.Param("id"), c.Param("taskId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"task":                task,
		"timeTrackingStarted": task.TrackingStartedAt,
	})
}

func (s *Server) handleStopTracking(c *gin.Context) {
	task, sessionTime, err := s.db.StopTracking(currentUser(c), c.Param("id"), c.Param("taskId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"task":        task,
		"timeSpent":   task.TimeSpent,
		"sessionTime": sessionTime,
	})
}
