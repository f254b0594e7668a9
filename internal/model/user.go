package model

import (
	"time"
)

// User is an authenticated account. Every project is owned by exactly one
// user, and tasks and subtasks resolve their owner through the project.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
