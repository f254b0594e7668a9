package db

import (
	"errors"
)

var (
	// ErrNotFound indicates the referenced project, task, or subtask does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the entity exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput indicates a missing or malformed field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyTracking indicates a timing session is already open for the task.
	ErrAlreadyTracking = errors.New("time tracking already started")
	// ErrNotTracking indicates no timing session is open for the task.
	ErrNotTracking = errors.New("time tracking not started")
	// ErrInvalidReorder indicates a reorder payload that does not cover the
	// project's current task set exactly.
	ErrInvalidReorder = errors.New("reorder does not match project tasks")
	// ErrEmailTaken indicates a registration attempt with an existing email.
	ErrEmailTaken = errors.New("email already registered")
)
