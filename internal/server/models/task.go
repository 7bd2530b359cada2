package models

import "time"

// Task is a to-do item with an optional due date.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Completed   bool       `json:"completed"`
	Source      string     `json:"source"`
	ExternalID  *string    `json:"externalId,omitempty"`
	Timestamps
}

func (t Task) RowID() string     { return t.ID }
func (t Task) RowUserID() string { return t.UserID }

// TaskForm is the create shape for a task.
type TaskForm struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   bool       `json:"completed"`
	Source      string     `json:"source" validate:"omitempty,oneof=local google"`
	ExternalID  *string    `json:"externalId"`
}

// TaskPatch holds partial updates; nil fields are left untouched.
type TaskPatch struct {
	Title       *string    `json:"title" validate:"omitempty,max=300"`
	Description *string    `json:"description"`
	DueDate     *time.Time `json:"dueDate"`
	Completed   *bool      `json:"completed"`
}
