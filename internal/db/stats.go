package db

import (
	"sort"
	"time"

	"github.com/arlo/taskmill/internal/model"
)

// DashboardStats computes the read-only aggregates for one user: project and
// task counts, average project completion time, completion buckets, and time
// totals. No state is modified.
func (db *DB) DashboardStats(userID string) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{
		TasksCompletedLast4Weeks:  []model.CompletionBucket{},
		TasksCompletedLast6Months: []model.CompletionBucket{},
	}

	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM projects WHERE user_id = ? AND archived = 0),
			(SELECT COUNT(*) FROM projects WHERE user_id = ? AND archived = 1),
			(SELECT COUNT(*) FROM tasks t JOIN projects p ON t.project_id = p.id WHERE p.user_id = ? AND t.completed = 1),
			(SELECT COUNT(*) FROM tasks t JOIN projects p ON t.project_id = p.id WHERE p.user_id = ? AND t.completed = 0),
			(SELECT COALESCE(SUM(time_spent), 0) FROM projects WHERE user_id = ?),
			(SELECT COALESCE(SUM(t.time_spent), 0) FROM tasks t JOIN projects p ON t.project_id = p.id WHERE p.user_id = ?)
	`, userID, userID, userID, userID, userID, userID).Scan(
		&stats.TotalProjectsActive,
		&stats.TotalProjectsArchived,
		&stats.TotalTasksCompleted,
		&stats.TotalTasksPending,
		&stats.TotalTimeSpentOnProjects,
		&stats.TotalTimeSpentOnTasks,
	)
	if err != nil {
		return nil, err
	}

	avg, err := db.averageCompletionSeconds(userID)
	if err != nil {
		return nil, err
	}
	stats.AverageProjectCompletionTime = avg

	completions, err := db.completionTimes(userID)
	if err != nil {
		return nil, err
	}
	stats.TasksCompletedLast4Weeks = bucketize(completions, weekStart, 4)
	stats.TasksCompletedLast6Months = bucketize(completions, monthStart, 6)

	return stats, nil
}

// averageCompletionSeconds is the mean of (archived_at - created_at) over
// the user's archived projects, nil when none qualify.
func (db *DB) averageCompletionSeconds(userID string) (*float64, error) {
	rows, err := db.Query(`
		SELECT created_at, archived_at
		FROM projects
		WHERE user_id = ? AND archived = 1 AND archived_at IS NOT NULL
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var total float64
	var n int
	for rows.Next() {
		var created, archived time.Time
		if err := rows.Scan(&created, &archived); err != nil {
			return nil, err
		}
		total += archived.Sub(created).Seconds()
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	avg := total / float64(n)
	return &avg, nil
}

// completionTimes returns the updated_at of every completed task the user
// owns. Completion time is approximated by the last update, matching how the
// original product counted its history.
func (db *DB) completionTimes(userID string) ([]time.Time, error) {
	rows, err := db.Query(`
		SELECT t.updated_at
		FROM tasks t
		JOIN projects p ON t.project_id = p.id
		WHERE p.user_id = ? AND t.completed = 1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		times = append(times, ts)
	}
	return times, rows.Err()
}

// bucketize groups timestamps by the truncation function and returns the
// most recent limit buckets, newest first. Empty buckets are omitted rather
// than zero-filled.
func bucketize(times []time.Time, truncate func(time.Time) time.Time, limit int) []model.CompletionBucket {
	counts := map[time.Time]int{}
	for _, ts := range times {
		counts[truncate(ts.UTC())]++
	}

	starts := make([]time.Time, 0, len(counts))
	for start := range counts {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].After(starts[j]) })
	if len(starts) > limit {
		starts = starts[:limit]
	}

	buckets := make([]model.CompletionBucket, 0, len(starts))
	for _, start := range starts {
		buckets = append(buckets, model.CompletionBucket{
			Start: start.Format(model.DateFormat),
			Count: counts[start],
		})
	}
	return buckets
}

// weekStart truncates to the Monday of the timestamp's week.
func weekStart(ts time.Time) time.Time {
	day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// monthStart truncates to the first of the timestamp's month.
func monthStart(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
}
