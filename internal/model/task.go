package model

import "time"

// Task statuses
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
)

// Task is a unit of client work that accumulates tracked time
type Task struct {
	ID            string    `json:"id" bson:"_id"`
	OwnerID       string    `json:"owner_id" bson:"ownerId"`
	ClientID      string    `json:"client_id" bson:"clientId"`
	Title         string    `json:"title" bson:"title"`
	Status        string    `json:"status" bson:"status"`
	ActualMinutes int64     `json:"actual_minutes" bson:"actualMinutes"`
	CreatedAt     time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updatedAt"`
}

// ValidTaskStatus reports whether s is a known task status
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	}
	return false
}

// TaskCounts is a per-status tally of a client's tasks
type TaskCounts struct {
	Pending    int64
	InProgress int64
	Completed  int64
}
