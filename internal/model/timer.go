package model

import (
	"math"
	"time"
)

// Timer records elapsed work time, optionally tied to a client and a task
type Timer struct {
	ID          string     `json:"id" bson:"_id"`
	OwnerID     string     `json:"owner_id" bson:"ownerId"`
	ClientID    *string    `json:"client_id,omitempty" bson:"clientId,omitempty"`
	TaskID      *string    `json:"task_id,omitempty" bson:"taskId,omitempty"`
	Billable    bool       `json:"billable" bson:"billable"`
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	StartedAt   time.Time  `json:"started_at" bson:"startedAt"`
	EndedAt     *time.Time `json:"ended_at,omitempty" bson:"endedAt"`
	Duration    *int64     `json:"duration,omitempty" bson:"duration"` // seconds
	CreatedAt   time.Time  `json:"created_at" bson:"createdAt"`
}

// IsRunning returns true while the timer has no end timestamp
func (t *Timer) IsRunning() bool {
	return t.EndedAt == nil
}

// ElapsedSeconds returns round((end - start) / 1000ms)
func ElapsedSeconds(start, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	return int64(math.Round(float64(ms) / 1000))
}

// SecondsToMinutes rounds a duration in seconds to whole minutes
func SecondsToMinutes(seconds int64) int64 {
	return int64(math.Round(float64(seconds) / 60))
}

// SecondsToHours converts seconds to fractional hours
func SecondsToHours(seconds int64) float64 {
	return float64(seconds) / 3600
}
