package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arlo/taskmill/internal/model"
)

func (s *Server) handleAddSubtask(c *gin.Context) {
	var req model.NewSubtask
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	subtask, err := s.db.AddSubtask(currentUser(c), c.Param("id"), c.Param("taskId"), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subtask": subtask})
}

func (s *Server) handleUpdateSubtask(c *gin.Context) {
	var patch model.SubtaskPatch
	if err := c.BindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	subtask, err := s.db.UpdateSubtask(currentUser(c), c.Param("id"), c.Param("taskId"), c.Param("subtaskId"), patch)
	if err != nil {
		s.fail(c, err)
		return
	}
	// The parent task's completion may have been recomputed; return it so
	// the caller can reconcile instead of guessing.
	task, err := s.db.GetTask(currentUser(c), c.Param("id"), c.Param("taskId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtask": subtask, "task": task})
}

func (s *Server) handleDeleteSubtask(c *gin.Context) {
	if err := s.db.DeleteSubtask(currentUser(c), c.Param("id"), c.Param("taskId"), c.Param("subtaskId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
