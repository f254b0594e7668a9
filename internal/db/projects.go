package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arlo/taskmill/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so guards and scans can
// run inside or outside a transaction.
type queryer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// guardProject verifies that userID owns the project. Every mutating
// operation runs this before touching state.
func guardProject(q queryer, userID, projectID string) error {
	var owner string
	err := q.QueryRow(`SELECT user_id FROM projects WHERE id = ?`, projectID).Scan(&owner)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}

// guardTask verifies ownership through the full chain: the task must belong
// to the project named in the request path, and the project to the user.
// Checking the pair defends against id substitution across projects.
func guardTask(q queryer, userID, projectID, taskID string) error {
	var owner string
	err := q.QueryRow(`
		SELECT p.user_id
		FROM projects p
		JOIN tasks t ON t.project_id = p.id
		WHERE p.id = ? AND t.id = ?
	`, projectID, taskID).Scan(&owner)
	if err == sql.ErrNoRows {
		// Distinguish a missing task from a missing project only as far as
		// the caller needs: both are ErrNotFound.
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return ErrForbidden
	}
	return nil
}

// CreateProject creates a project, optionally pre-populated with a task tree
// (manually supplied or AI-generated). Tasks get dense 1-based positions in
// payload order. The whole tree is inserted in one transaction.
func (db *DB) CreateProject(userID string, np model.NewProject) (*model.Project, error) {
	np.Name = strings.TrimSpace(np.Name)
	if np.Name == "" {
		return nil, fmt.Errorf("%w: project name is required", ErrInvalidInput)
	}
	for _, t := range np.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("%w: task title is required", ErrInvalidInput)
		}
		for _, st := range t.Subtasks {
			if strings.TrimSpace(st.Title) == "" {
				return nil, fmt.Errorf("%w: subtask title is required", ErrInvalidInput)
			}
		}
	}

	now := db.now()
	project := &model.Project{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        np.Name,
		Description: np.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
		Tasks:       []model.Task{},
	}

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, project.ID, userID, project.Name, project.Description, now, now)
		if err != nil {
			return err
		}

		for i, nt := range np.Tasks {
			task := model.Task{
				ID:          uuid.New().String(),
				ProjectID:   project.ID,
				Title:       strings.TrimSpace(nt.Title),
				Description: nt.Description,
				Position:    i + 1,
				DueDate:     nt.DueDate,
				DueTime:     nt.DueTime,
				CreatedAt:   now,
				UpdatedAt:   now,
				Subtasks:    []model.Subtask{},
			}
			_, err := tx.Exec(`
				INSERT INTO tasks (id, project_id, title, description, position, due_date, due_time, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, task.ID, project.ID, task.Title, task.Description, task.Position, task.DueDate, task.DueTime, now, now)
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
			project.Tasks = append(project.Tasks, task)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

// ListProjects returns the user's projects filtered by the archived flag,
// most recently updated first, with a completion percentage over every task
// and subtask in the project.
func (db *DB) ListProjects(userID string, archived bool) ([]model.Project, error) {
	rows, err := db.Query(`
		SELECT p.id, p.name, p.description, p.archived, p.archived_at,
		       p.time_spent, p.created_at, p.updated_at,
		       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id) AS task_count,
		       (SELECT COUNT(*) FROM tasks t WHERE t.project_id = p.id AND t.completed = 1) AS task_done,
		       (SELECT COUNT(*) FROM subtasks st JOIN tasks t ON st.task_id = t.id WHERE t.project_id = p.id) AS subtask_count,
		       (SELECT COUNT(*) FROM subtasks st JOIN tasks t ON st.task_id = t.id WHERE t.project_id = p.id AND st.completed = 1) AS subtask_done
		FROM projects p
		WHERE p.user_id = ? AND p.archived = ?
		ORDER BY p.updated_at DESC
	`, userID, archived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var p model.Project
		var archivedFlag int
		var archivedAt sql.NullTime
		var taskCount, taskDone, subtaskCount, subtaskDone int
		err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &archivedFlag, &archivedAt,
			&p.TimeSpent, &p.CreatedAt, &p.UpdatedAt,
			&taskCount, &taskDone, &subtaskCount, &subtaskDone,
		)
		if err != nil {
			return nil, err
		}
		p.UserID = userID
		p.Archived = archivedFlag == 1
		if archivedAt.Valid {
			t := archivedAt.Time
			p.ArchivedAt = &t
		}
		if total := taskCount + subtaskCount; total > 0 {
			p.Progress = (taskDone + subtaskDone) * 100 / total
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject returns one project with its full task and subtask tree, tasks
// ordered by position. Returns ErrForbidden (never silently empty data) for
// a project owned by someone else.
func (db *DB) GetProject(userID, projectID string) (*model.Project, error) {
	var p model.Project
	var archivedFlag int
	var archivedAt sql.NullTime
	err := db.QueryRow(`
		SELECT id, user_id, name, description, archived, archived_at, time_spent, created_at, updated_at
		FROM projects WHERE id = ?
	`, projectID).Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &archivedFlag, &archivedAt,
		&p.TimeSpent, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrForbidden
	}
	p.Archived = archivedFlag == 1
	if archivedAt.Valid {
		t := archivedAt.Time
		p.ArchivedAt = &t
	}

	tasks, err := db.tasksForProject(projectID)
	if err != nil {
		return nil, err
	}
	p.Tasks = tasks
	return &p, nil
}

// UpdateProject applies a partial update. Archiving stamps archived_at;
// unarchiving clears it, maintaining archived == false => archived_at IS NULL.
func (db *DB) UpdateProject(userID, projectID string, patch model.ProjectPatch) (*model.Project, error) {
	if err := guardProject(db, userID, projectID); err != nil {
		return nil, err
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("%w: project name cannot be empty", ErrInvalidInput)
	}

	now := db.now()
	err := db.Transaction(func(tx *sql.Tx) error {
		// Whole-row merge: read, apply, write back every column.
		var name, description string
		var archivedFlag int
		var archivedAt sql.NullTime
		err := tx.QueryRow(`
			SELECT name, description, archived, archived_at FROM projects WHERE id = ?
		`, projectID).Scan(&name, &description, &archivedFlag, &archivedAt)
		if err != nil {
			return err
		}

		if patch.Name != nil {
			name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			description = *patch.Description
		}
		if patch.Archived != nil {
			if *patch.Archived && archivedFlag == 0 {
				archivedAt = sql.NullTime{Time: now, Valid: true}
			}
			if !*patch.Archived {
				archivedAt = sql.NullTime{}
			}
			if *patch.Archived {
				archivedFlag = 1
			} else {
				archivedFlag = 0
			}
		}

		_, err = tx.Exec(`
			UPDATE projects SET name = ?, description = ?, archived = ?, archived_at = ?, updated_at = ?
			WHERE id = ?
		`, name, description, archivedFlag, archivedAt, now, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return db.GetProject(userID, projectID)
}

// DeleteProject removes the project; the schema's cascades remove every task
// and subtask under it.
func (db *DB) DeleteProject(userID, projectID string) error {
	if err := guardProject(db, userID, projectID); err != nil {
		return err
	}
	_, err := db.Exec(`DELETE FROM projects WHERE id = ?`, projectID)
	return err
}

// touchProject bumps the project's updated_at. Every state change to a task
// or subtask propagates here.
func touchProject(q queryer, projectID string, now time.Time) error {
	_, err := q.Exec(`UPDATE projects SET updated_at = ? WHERE id = ?`, now, projectID)
	return err
}
