package model

import "time"

const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"

	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
)

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	ProjectID   *int64     `json:"project_id"`
	ProjectName *string    `json:"project_name"`
	UserID      int64      `json:"user_id"`
	DueDate     *string    `json:"due_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TaskRequest is the create/update payload. Any user_id sent by a client is
// dropped by the decoder because the struct has no such field.
type TaskRequest struct {
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Status      string  `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	ProjectID   *int64  `json:"project_id"`
	DueDate     *string `json:"due_date"`
}

// TaskFilter narrows task listings. Zero values disable a filter.
type TaskFilter struct {
	Status    string
	Priority  string
	ProjectID *int64
	From      *time.Time
	Until     *time.Time
	Search    string
}

type CountResponse struct {
	Count int64 `json:"count"`
}
