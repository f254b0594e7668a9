package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arlo/taskmill/internal/model"
)

func (db *DB) subtasksForTask(taskID string) ([]model.Subtask, error) {
	rows, err := db.Query(`
		SELECT id, task_id, title, completed, created_at, updated_at
		FROM subtasks WHERE task_id = ?
		ORDER BY created_at, id
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subtasks := []model.Subtask{}
	for rows.Next() {
		var st model.Subtask
		var completed int
		if err := rows.Scan(&st.ID, &st.TaskID, &st.Title, &completed, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.Completed = completed == 1
		subtasks = append(subtasks, st)
	}
	return subtasks, rows.Err()
}

// AddSubtask creates a subtask under the task. New subtasks start incomplete,
// so a previously completed parent goes back to incomplete on the next
// subtask recompute.
func (db *DB) AddSubtask(userID, projectID, taskID string, ns model.NewSubtask) (*model.Subtask, error) {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return nil, err
	}
	ns.Title = strings.TrimSpace(ns.Title)
	if ns.Title == "" {
		return nil, fmt.Errorf("%w: subtask title is required", ErrInvalidInput)
	}

	now := db.now()
	subtask := &model.Subtask{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Title:     ns.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO subtasks (id, task_id, title, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, subtask.ID, taskID, subtask.Title, now, now)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE tasks SET updated_at = ? WHERE id = ?`, now, taskID); err != nil {
			return err
		}
		return touchProject(tx, projectID, now)
	})
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// UpdateSubtask applies a partial update. A completion change recomputes the
// parent task's flag as the AND over all sibling subtasks, in the same
// transaction, so a partially-applied state is never visible.
func (db *DB) UpdateSubtask(userID, projectID, taskID, subtaskID string, patch model.SubtaskPatch) (*model.Subtask, error) {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return nil, err
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, fmt.Errorf("%w: subtask title cannot be empty", ErrInvalidInput)
	}

	now := db.now()
	var updated *model.Subtask
	err := db.Transaction(func(tx *sql.Tx) error {
		var st model.Subtask
		var completed int
		err := tx.QueryRow(`
			SELECT id, task_id, title, completed, created_at, updated_at
			FROM subtasks WHERE id = ? AND task_id = ?
		`, subtaskID, taskID).Scan(&st.ID, &st.TaskID, &st.Title, &completed, &st.CreatedAt, &st.UpdatedAt)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		st.Completed = completed == 1

		if patch.Title != nil {
			st.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Completed != nil {
			st.Completed = *patch.Completed
		}
		st.UpdatedAt = now

		_, err = tx.Exec(`
			UPDATE subtasks SET title = ?, completed = ?, updated_at = ? WHERE id = ?
		`, st.Title, st.Completed, now, subtaskID)
		if err != nil {
			return err
		}

		// With subtasks present the task's flag is strictly derived:
		// completed iff every sibling is completed.
		if patch.Completed != nil {
			if err := recomputeTaskCompletion(tx, taskID, now); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(`UPDATE tasks SET updated_at = ? WHERE id = ?`, now, taskID); err != nil {
				return err
			}
		}

		updated = &st
		return touchProject(tx, projectID, now)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSubtask removes the subtask. The parent task's completion flag is
// left untouched; only a completion toggle triggers a recompute.
func (db *DB) DeleteSubtask(userID, projectID, taskID, subtaskID string) error {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return err
	}
	now := db.now()
	return db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM subtasks WHERE id = ? AND task_id = ?`, subtaskID, taskID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(`UPDATE tasks SET updated_at = ? WHERE id = ?`, now, taskID); err != nil {
			return err
		}
		return touchProject(tx, projectID, now)
	})
}

// recomputeTaskCompletion sets the task's completed flag to the AND over its
// subtasks' completed flags. Only called when at least one subtask exists.
func recomputeTaskCompletion(tx *sql.Tx, taskID string, now time.Time) error {
	var total, done int
	err := tx.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM subtasks WHERE task_id = ?
	`, taskID).Scan(&total, &done)
	if err != nil {
		return err
	}
	completed := total > 0 && done == total
	_, err = tx.Exec(`UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?`, completed, now, taskID)
	return err
}
