package db

import (
	"database/sql"

	"github.com/arlo/taskmill/internal/model"
)

// StartTracking opens a timing session for the task. The update is
// conditional on tracking_started_at being null, so two concurrent starts
// cannot both succeed: the loser sees zero rows affected and fails with
// ErrAlreadyTracking.
func (db *DB) StartTracking(userID, projectID, taskID string) (*model.Task, error) {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return nil, err
	}

	now := db.now()
	err := db.Transaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE tasks SET tracking_started_at = ?, updated_at = ?
			WHERE id = ? AND project_id = ? AND tracking_started_at IS NULL
		`, now, now, taskID, projectID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyTracking
		}
		return touchProject(tx, projectID, now)
	})
	if err != nil {
		return nil, err
	}
	return db.GetTask(userID, projectID, taskID)
}

// StopTracking closes the open session, adds the elapsed seconds to the
// task's accumulated time and the identical amount to the project's, and
// clears the session marker. All three writes commit together.
func (db *DB) StopTracking(userID, projectID, taskID string) (*model.Task, int64, error) {
	if err := guardTask(db, userID, projectID, taskID); err != nil {
		return nil, 0, err
	}

	now := db.now()
	var elapsed int64
	err := db.Transaction(func(tx *sql.Tx) error {
		var startedAt sql.NullTime
		err := tx.QueryRow(`
			SELECT tracking_started_at FROM tasks WHERE id = ? AND project_id = ?
		`, taskID, projectID).Scan(&startedAt)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if !startedAt.Valid {
			return ErrNotTracking
		}

		elapsed = int64(now.Sub(startedAt.Time).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}

		_, err = tx.Exec(`
			UPDATE tasks SET tracking_started_at = NULL, time_spent = time_spent + ?, updated_at = ?
			WHERE id = ?
		`, elapsed, now, taskID)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE projects SET time_spent = time_spent + ?, updated_at = ?
			WHERE id = ?
		`, elapsed, now, projectID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	task, err := db.GetTask(userID, projectID, taskID)
	if err != nil {
		return nil, 0, err
	}
	return task, elapsed, nil
}
