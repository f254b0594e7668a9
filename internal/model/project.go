package model

import (
	"time"
)

// Project is a top-level unit of work owned by exactly one user.
type Project struct {
	ID          string     `json:"id"`
	UserID      string     `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Archived    bool       `json:"archived"`
	ArchivedAt  *time.Time `json:"archivedAt,omitempty"`
	TimeSpent   int64      `json:"timeSpent"` // Seconds
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Loaded relationships (not stored in the projects table)
	Tasks []Task `json:"tasks,omitempty"`

	// Computed for list views: percentage of completed tasks and subtasks
	Progress int `json:"progress"`
}

// ProjectPatch is a partial update to a project. Nil fields are left
// unchanged; present fields overwrite.
type ProjectPatch struct {
	Name        *string
	Description *string
	Archived    *bool
}

// IsEmpty reports whether the patch changes nothing.
func (p ProjectPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Archived == nil
}

// NewProject is the payload for creating a project, optionally pre-populated
// with a task tree (manual or AI-generated).
type NewProject struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Tasks       []NewTask `json:"tasks,omitempty"`
}
