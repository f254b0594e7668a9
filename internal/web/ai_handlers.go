package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arlo/taskmill/internal/genai"
	"github.com/arlo/taskmill/internal/model"
)

type generateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"language"`
}

// handleGenerateTasks proposes a task list for a project description. The
// proposal is returned to the caller for review, not persisted.
func (s *Server) handleGenerateTasks(c *gin.Context) {
	var req generateRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project description is required"})
		return
	}

	tasks, err := s.gen.GenerateTaskList(c.Request.Context(), req.Name, req.Description, req.Language)
	if err != nil {
		s.fail(c, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "New Project"
	}
	c.JSON(http.StatusOK, gin.H{"projectName": name, "tasks": tasks})
}

type refineRequest struct {
	Description string `json:"description"`
}

// handleRefineDescription rewrites a draft project description into a more
// specific one, for the caller to feed back into task generation.
func (s *Server) handleRefineDescription(c *gin.Context) {
	var req refineRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Project description is required"})
		return
	}

	refined, err := s.gen.RefineDescription(c.Request.Context(), req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refinedDescription": refined})
}

type aiTaskRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

// handleAITask generates one task in the context of an existing project and
// persists it at the tail position. The task and its subtasks land in one
// transaction; a failed generation leaves the project untouched.
func (s *Server) handleAITask(c *gin.Context) {
	var req aiTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	userID := currentUser(c)
	projectID := c.Param("id")

	// Ownership check and prompt context in one fetch.
	project, err := s.db.GetProject(userID, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}

	proposal, err := s.gen.GenerateProjectTask(c.Request.Context(), projectContext(project), req.Prompt, req.Language)
	if err != nil {
		s.fail(c, err)
		return
	}

	nt := model.NewTask{Title: proposal.Title, Description: proposal.Description}
	for _, st := range proposal.Subtasks {
		nt.Subtasks = append(nt.Subtasks, model.NewSubtask{Title: st.Title})
	}
	task, err := s.db.AddTask(userID, projectID, nt)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

type reeditRequest struct {
	Prompt   string `json:"prompt"`
	Language string `json:"language"`
}

// handleReeditTasks rewrites the wording of the project's existing tasks per
// a modification instruction. Completion state, ordering, and time tracking
// survive the rewrite; the response carries the authoritative task list.
func (s *Server) handleReeditTasks(c *gin.Context) {
	var req reeditRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	userID := currentUser(c)
	projectID := c.Param("id")

	project, err := s.db.GetProject(userID, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}

	proposals, err := s.gen.ReeditTasks(c.Request.Context(), projectContext(project), req.Prompt, req.Language)
	if err != nil {
		s.fail(c, err)
		return
	}

	revisions := make([]model.TaskRevision, 0, len(proposals))
	for _, p := range proposals {
		r := model.TaskRevision{ID: p.ID, Title: p.Title, Description: p.Description}
		for _, sp := range p.Subtasks {
			r.Subtasks = append(r.Subtasks, model.SubtaskRevision{ID: sp.ID, Title: sp.Title})
		}
		revisions = append(revisions, r)
	}
	if err := s.db.ApplyTaskRevisions(userID, projectID, revisions); err != nil {
		s.fail(c, err)
		return
	}

	project, err = s.db.GetProject(userID, projectID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": project.Tasks})
}

// projectContext flattens a loaded project into the prompt context the
// generator consumes.
func projectContext(p *model.Project) genai.ProjectContext {
	pctx := genai.ProjectContext{Name: p.Name, Description: p.Description}
	for _, t := range p.Tasks {
		tc := genai.TaskContext{ID: t.ID, Title: t.Title, Description: t.Description, Completed: t.Completed}
		for _, st := range t.Subtasks {
			tc.Subtasks = append(tc.Subtasks, genai.SubtaskContext{ID: st.ID, Title: st.Title, Completed: st.Completed})
		}
		pctx.Tasks = append(pctx.Tasks, tc)
	}
	return pctx
}
