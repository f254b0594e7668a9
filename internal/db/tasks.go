package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arlo/taskmill/internal/model"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(s scanner) (*model.Task, error) {
	var t model.Task
	var completed int
	var description, dueDate, dueTime sql.NullString
	var trackingStarted sql.NullTime

	err := s.Scan(
		&t.ID, &t.ProjectID, &t.Title, &description, &completed,
		&t.TimeSpent, &trackingStarted, &t.Position,
		&dueDate, &dueTime, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Completed = completed == 1
	if description.Valid {
		t.Description = &description.String
	}
	if trackingStarted.Valid {
		ts := trackingStarted.Time
		t.TrackingStartedAt = &ts
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	if dueTime.Valid {
		t.DueTime = &dueTime.String
	}
	t.Subtasks = []model.Subtask{}
	return &t, nil
}

const taskColumns = `id, project_id, title, description, completed,
	time_spent, tracking_started_at, position, due_date, due_time,
	created_at, updated_at`

// tasksForProject loads the ordered task list with subtasks attached. Task
// rows are fully read before the subtask queries run: with a single SQLite
// connection, a nested query during rows iteration deadlocks.
func (db *DB) tasksForProject(projectID string) ([]model.Task, error) {
	rows, err := db.Query(`
		SELECT `+taskColumns+`
		FROM tasks
		WHERE project_id = ?
		ORDER BY position, created_at
	`, projectID)
	if err != nil {
		return nil, err
	}

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range tasks {
		subtasks, err := db.subtasksForTask(tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].Subtasks = subtasks
	}
	return tasks, nil
}

// getTask returns one task scoped to its project, or ErrNotFound.
func getTask(q queryer, projectID, taskID string) (*model.Task, error) {
	t, err := scanTask(q.QueryRow(`
		SELECT `+taskColumns+`
		FROM tasks WHERE id = ? AND project_id = ?
	`, taskID, projectID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return t, err
}

// GetTask returns one task with its subtasks after verifying ownership.
func (db *DB) GetTask(userID, projectID, taskID string) (*model.Task, error) {
	if err := guardProject(db, userID, projectID); err != nil {
		return nil, err
	}
	t, err := getTask(db, projectID, taskID)
	if err != nil {
		return nil, err
	}
	subtasks, err := db.subtasksForTask(taskID)
	if err != nil {
		return nil, err
	}
	t.Subtasks = subtasks
	return t, nil
}

// AddTask appends a task at max(position)+1 within the project. A supplied
// subtask list is inserted in the same transaction: either the whole tree
// lands or nothing does.
func (db *DB) AddTask(userID, projectID string, nt model.NewTask) (*model.Task, error) {
	if err := guardProject(db, userID, projectID); err != nil {
		return nil, err
	}
	nt.Title = strings.TrimSpace(nt.Title)
	if nt.Title == "" {
		return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
	}
	for _, st := range nt.Subtasks {
		if strings.TrimSpace(st.Title) == "" {
			return nil, fmt.Errorf("%w: subtask title is required", ErrInvalidInput)
		}
	}
	if err := validateDue(nt.DueDate, nt.DueTime); err != nil {
		return nil, err
	}

	now := db.now()
	task := &model.Task{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       nt.Title,
		Description: nt.Description,
		DueDate:     nt.DueDate,
		DueTime:     nt.DueTime,
		CreatedAt:   now,
		UpdatedAt:   now,
		Subtasks:    []model.Subtask{},
	}

	err := db.Transaction(func(tx *sql.Tx) error {
		var maxPos sql.NullInt64
		if err := tx.QueryRow(`SELECT MAX(position) FROM tasks WHERE project_id = ?`, projectID).Scan(&maxPos); err != nil {
			return err
		}
		task.Position = 1
		if maxPos.Valid {
			task.Position = int(maxPos.Int64) + 1
		}

		_, err := tx.Exec(`
			INSERT INTO tasks (id, project_id, title, description, position, due_date, due_time, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, task.ID, projectID, task.Title, task.Description, task.Position, task.DueDate, task.DueTime, now, now)
		if err != nil {
			return err
		}

		for _, nst := range nt.Subtasks {
			subtask := model.Subtask{
				ID:        uuid.New().String(),
				TaskID:    task.ID,
				Title:     strings.TrimSpace(nst.Title),
				CreatedAt: now,
				UpdatedAt: now,
			}
			_, err := tx.Exec(`
				INSERT INTO subtasks (id, task_id, title, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)
			`, subtask.ID, task.ID, subtask.Title, now, now)
			if err != nil {
				return err
			}
			task.Subtasks = append(task.Subtasks, subtask)
		}
		return touchProject(tx, projectID, now)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateTask applies a partial update and maintains the completion invariant:
// setting completed = true forces every subtask complete; setting it false
// leaves subtasks as they are. Marking a task done implies all its parts are
// done, but reopening a task does not reopen every part.
func (db *DB) UpdateTask(userID, projectID, taskID string, patch model.TaskPatch) (*model.Task, error) {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: task title cannot be empty", ErrInvalidInput)
	}
	if patch.HasDueDate || patch.HasDueTime {
		if err := validateDue(patch.DueDate, patch.DueTime); err != nil {
			return nil, err
		}
	}

	now := db.now()
	err := db.Transaction(func(tx *sql.Tx) error {
		task, err := getTask(tx, projectID, taskID)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			task.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Completed != nil {
			task.Completed = *patch.Completed
		}
		if patch.HasDescription {
			task.Description = patch.Description
		}
		if patch.HasDueDate {
			task.DueDate = patch.DueDate
		}
		if patch.HasDueTime {
			task.DueTime = patch.DueTime
		}

		_, err = tx.Exec(`
			UPDATE tasks SET title = ?, description = ?, completed = ?, due_date = ?, due_time = ?, updated_at = ?
			WHERE id = ?
		`, task.Title, task.Description, task.Completed, task.DueDate, task.DueTime, now, taskID)
		if err != nil {
			return err
		}

		// Explicit completion cascades down to subtasks.
		if patch.Completed != nil && *patch.Completed {
			_, err = tx.Exec(`
				UPDATE subtasks SET completed = 1, updated_at = ? WHERE task_id = ?
			`, now, taskID)
			if err != nil {
				return err
			}
		}
		return touchProject(tx, projectID, now)
	})
	if err != nil {
		return nil, err
	}

	return db.GetTask(userID, projectID, taskID)
}

// DeleteTask removes the task and, via cascade, its subtasks. Remaining
// positions are not renumbered; gaps close on the next explicit reorder.
func (db *DB) DeleteTask(userID, projectID, taskID string) error {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return err
	}
	now := db.now()
	return db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ? AND project_id = ?`, taskID, projectID); err != nil {
			return err
		}
		return touchProject(tx, projectID, now)
	})
}

// ReorderTasks overwrites every task's position from the supplied relabeling.
// The id set must match the project's current task set exactly; otherwise
// nothing changes and ErrInvalidReorder is returned.
func (db *DB) ReorderTasks(userID, projectID string, orders []model.TaskOrder) error {
	if err := guardProject(db, userID, projectID); err != nil {
		return err
	}

	now := db.now()
	return db.Transaction(func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT id FROM tasks WHERE project_id = ?`, projectID)
		if err != nil {
			return err
		}
		current := map[string]bool{}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			current[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(orders) != len(current) {
			return ErrInvalidReorder
		}
		seen := map[string]bool{}
		for _, o := range orders {
			if !current[o.ID] || seen[o.ID] {
				return ErrInvalidReorder
			}
			seen[o.ID] = true
		}

		for _, o := range orders {
			_, err := tx.Exec(`
				UPDATE tasks SET position = ?, updated_at = ? WHERE id = ?
			`, o.Position, now, o.ID)
			if err != nil {
				return err
			}
		}
		return touchProject(tx, projectID, now)
	})
}

// ApplyTaskRevisions rewrites task titles and descriptions, and subtask
// titles, from an AI re-edit. Completion flags, positions, and time fields
// stay as they are; revision ids that do not belong to the project update
// nothing. All rewrites commit together.
func (db *DB) ApplyTaskRevisions(userID, projectID string, revisions []model.TaskRevision) error {
	if err := guardProject(db, userID, projectID); err != nil {
		return err
	}
	for _, r := range revisions {
		if strings.TrimSpace(r.Title) == "" {
			return fmt.Errorf("%w: task title cannot be empty", ErrInvalidInput)
		}
		for _, sr := range r.Subtasks {
			if strings.TrimSpace(sr.Title) == "" {
				return fmt.Errorf("%w: subtask title cannot be empty", ErrInvalidInput)
			}
		}
	}

	now := db.now()
	return db.Transaction(func(tx *sql.Tx) error {
		for _, r := range revisions {
			_, err := tx.Exec(`
				UPDATE tasks SET title = ?, description = ?, updated_at = ?
				WHERE id = ? AND project_id = ?
			`, strings.TrimSpace(r.Title), r.Description, now, r.ID, projectID)
			if err != nil {
				return err
			}
			for _, sr := range r.Subtasks {
				_, err := tx.Exec(`
					UPDATE subtasks SET title = ?, updated_at = ?
					WHERE id = ? AND task_id = ?
				`, strings.TrimSpace(sr.Title), now, sr.ID, r.ID)
				if err != nil {
					return err
				}
			}
		}
		return touchProject(tx, projectID, now)
	})
}

func validateDue(dueDate, dueTime *string) error {
	if dueDate != nil {
		if _, err := time.Parse(model.DateFormat, *dueDate); err != nil {
			return fmt.Errorf("%w: due date must be YYYY-MM-DD", ErrInvalidInput)
		}
	}
	if dueTime != nil {
		if _, err := time.Parse(model.TimeFormat, *dueTime); err != nil {
			return fmt.Errorf("%w: due time must be HH:MM", ErrInvalidInput)
		}
	}
	return nil
}
