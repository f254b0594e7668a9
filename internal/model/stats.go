package model

// CompletionBucket is a count of completed tasks in one calendar bucket
// (week or month). Start is the bucket boundary formatted as a date.
type CompletionBucket struct {
	Start string `json:"start"`
	Count int    `json:"count"`
}

// DashboardStats aggregates completion and time-tracking statistics across
// one user's projects. All durations are seconds.
type DashboardStats struct {
	TotalProjectsActive   int `json:"totalProjectsActive"`
	TotalProjectsArchived int `json:"totalProjectsArchived"`
	TotalTasksCompleted   int `json:"totalTasksCompleted"`
	TotalTasksPending     int `json:"totalTasksPending"`

	// Mean of (archived_at - created_at) over archived projects; nil when
	// the user has no archived projects.
	AverageProjectCompletionTime *float64 `json:"averageProjectCompletionTime"`

	// Sparse buckets, most recent first. Weeks start on Monday (UTC).
	TasksCompletedLast4Weeks  []CompletionBucket `json:"tasksCompletedLast4Weeks"`
	TasksCompletedLast6Months []CompletionBucket `json:"tasksCompletedLast6Months"`

	TotalTimeSpentOnProjects int64 `json:"totalTimeSpentOnProjects"`
	TotalTimeSpentOnTasks    int64 `json:"totalTimeSpentOnTasks"`
}
