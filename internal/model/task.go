package model

import (
	"encoding/json"
	"time"
)

// DateFormat and TimeFormat are the wire formats for task due fields.
const (
	DateFormat = "2006-01-02"
	TimeFormat = "15:04"
)

// Task is a unit of work within a project. Its completed flag is derived
// from its subtasks whenever it has any; otherwise it is toggled directly.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"-"`
	Title       string     `json:"task"`
	Description *string    `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	TimeSpent   int64      `json:"timeSpent"` // Seconds
	TrackingStartedAt *time.Time `json:"timeTrackingStarted,omitempty"`
	Position    int        `json:"position"`
	DueDate     *string    `json:"dueDate,omitempty"` // "2006-01-02"
	DueTime     *string    `json:"dueTime,omitempty"` // "15:04"
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// Loaded relationships (not stored in the tasks table)
	Subtasks []Subtask `json:"subtasks"`
}

// IsTracking returns true if a timing session is open for the task.
func (t *Task) IsTracking() bool {
	return t.TrackingStartedAt != nil
}

// DueAt combines DueDate and DueTime into a timestamp. Tasks without a due
// date return nil; a missing due time means end of day.
func (t *Task) DueAt() *time.Time {
	if t.DueDate == nil {
		return nil
	}
	day, err := time.Parse(DateFormat, *t.DueDate)
	if err != nil {
		return nil
	}
	due := day.Add(24*time.Hour - time.Second)
	if t.DueTime != nil {
		if clock, err := time.Parse(TimeFormat, *t.DueTime); err == nil {
			due = day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute)
		}
	}
	return &due
}

// IsOverdue returns true if the task is incomplete and past its due date.
func (t *Task) IsOverdue() bool {
	due := t.DueAt()
	if due == nil || t.Completed {
		return false
	}
	return time.Now().After(*due)
}

// NewTask is the payload for creating a task.
type NewTask struct {
	Title       string       `json:"task"`
	Description *string      `json:"description,omitempty"`
	DueDate     *string      `json:"dueDate,omitempty"`
	DueTime     *string      `json:"dueTime,omitempty"`
	Subtasks    []NewSubtask `json:"subtasks,omitempty"`
}

// TaskPatch is a partial update to a task. For the nullable columns the
// Has* flag distinguishes "absent from the payload" from "present but null"
// (present-null clears the column).
type TaskPatch struct {
	Title     *string
	Completed *bool

	Description    *string
	HasDescription bool
	DueDate        *string
	HasDueDate     bool
	DueTime        *string
	HasDueTime     bool
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil &&
		!p.HasDescription && !p.HasDueDate && !p.HasDueTime
}

// UnmarshalJSON records which keys were present so that the persistence
// layer can apply a whole-row merge instead of guessing at intent.
func (p *TaskPatch) UnmarshalJSON(data []byte) error {
	var fields struct {
		Title       *string `json:"task"`
		Completed   *bool   `json:"completed"`
		Description *string `json:"description"`
		DueDate     *string `json:"dueDate"`
		DueTime     *string `json:"dueTime"`
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(data, &present); err != nil {
		return err
	}

	p.Title = fields.Title
	p.Completed = fields.Completed
	p.Description = fields.Description
	p.DueDate = fields.DueDate
	p.DueTime = fields.DueTime
	_, p.HasDescription = present["description"]
	_, p.HasDueDate = present["dueDate"]
	_, p.HasDueTime = present["dueTime"]
	return nil
}

// TaskOrder pairs a task id with its desired position in a reorder request.
type TaskOrder struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}

// TaskRevision is a rewrite of an existing task's wording, keyed by id.
// Completion flags, positions, and time fields are not part of a revision.
type TaskRevision struct {
	ID          string            `json:"id"`
	Title       string            `json:"task"`
	Description *string           `json:"description,omitempty"`
	Subtasks    []SubtaskRevision `json:"subtasks"`
}
