package model

import "time"

// Client statuses
const (
	ClientActive   = "active"
	ClientPaused   = "paused"
	ClientArchived = "archived"
)

// ClientCounters are the denormalized aggregates kept on a client.
// Only the counter maintainer writes them
type ClientCounters struct {
	ObjectivesCount     int64 `json:"objectives_count" bson:"objectivesCount"`
	ObjectivesCompleted int64 `json:"objectives_completed" bson:"objectivesCompleted"`
	ObjectivesPending   int64 `json:"objectives_pending" bson:"objectivesPending"`
	TasksCompleted      int64 `json:"tasks_completed" bson:"tasksCompleted"`
	TasksInProgress     int64 `json:"tasks_in_progress" bson:"tasksInProgress"`
	TasksPending        int64 `json:"tasks_pending" bson:"tasksPending"`
}

// Client is a customer of the owner
type Client struct {
	ID           string         `json:"id" bson:"_id"`
	OwnerID      string         `json:"owner_id" bson:"ownerId"`
	Name         string         `json:"name" bson:"name"`
	Status       string         `json:"status" bson:"status"`
	Counters     ClientCounters `json:"counters" bson:"counters"`
	LastActivity *time.Time     `json:"last_activity,omitempty" bson:"lastActivity,omitempty"`
	CreatedAt    time.Time      `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time      `json:"updated_at" bson:"updatedAt"`
}

// ValidClientStatus reports whether s is a known client status
func ValidClientStatus(s string) bool {
	switch s {
	case ClientActive, ClientPaused, ClientArchived:
		return true
	}
	return false
}

// Balanced reports whether the objective buckets add up to the total
func (c ClientCounters) Balanced() bool {
	return c.ObjectivesCount == c.ObjectivesCompleted+c.ObjectivesPending
}

// Negative returns the names of counters that dropped below zero
func (c ClientCounters) Negative() []string {
	var names []string
	check := func(name string, v int64) {
		if v < 0 {
			names = append(names, name)
		}
	}
	check("objectives_count", c.ObjectivesCount)
	check("objectives_completed", c.ObjectivesCompleted)
	check("objectives_pending", c.ObjectivesPending)
	check("tasks_completed", c.TasksCompleted)
	check("tasks_in_progress", c.TasksInProgress)
	check("tasks_pending", c.TasksPending)
	return names
}
