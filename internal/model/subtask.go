package model

import (
	"time"
)

// Subtask is a leaf unit of work within a task.
type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"-"`
	Title     string    `json:"task"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewSubtask is the payload for creating a subtask.
type NewSubtask struct {
	Title string `json:"task"`
}

// SubtaskPatch is a partial update to a subtask. Nil fields are left
// unchanged.
type SubtaskPatch struct {
	Title     *string `json:"task"`
	Completed *bool   `json:"completed"`
}

// IsEmpty reports whether the patch changes nothing.
func (p SubtaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil
}

// SubtaskRevision is a rewrite of an existing subtask's title, keyed by id.
type SubtaskRevision struct {
	ID    string `json:"id"`
	Title string `json:"task"`
}
