package model

import (
	"math"
	"time"
)

// Objective is a per-client target with derived progress
type Objective struct {
	ID           string     `json:"id" bson:"_id"`
	OwnerID      string     `json:"owner_id" bson:"ownerId"`
	ClientID     string     `json:"client_id" bson:"clientId"`
	Title        string     `json:"title" bson:"title"`
	Description  string     `json:"description,omitempty" bson:"description,omitempty"`
	TargetValue  float64    `json:"target_value" bson:"targetValue"`
	CurrentValue float64    `json:"current_value" bson:"currentValue"`
	Unit         string     `json:"unit,omitempty" bson:"unit,omitempty"`
	IsCompleted  bool       `json:"is_completed" bson:"isCompleted"`
	Progress     *int       `json:"progress,omitempty" bson:"progress"`
	DueDate      *time.Time `json:"due_date,omitempty" bson:"dueDate,omitempty"`
	Category     string     `json:"category,omitempty" bson:"category,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" bson:"completedAt"`
	CreatedAt    time.Time  `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updated_at" bson:"updatedAt"`
}

// ObjectiveProgress returns min(100, round(100*current/target)), floored at 0.
// It is nil when the target is not positive
func ObjectiveProgress(current, target float64) *int {
	if target <= 0 {
		return nil
	}
	p := int(math.Round(100 * current / target))
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return &p
}

// Refresh recomputes the derived progress
func (o *Objective) Refresh() {
	o.Progress = ObjectiveProgress(o.CurrentValue, o.TargetValue)
}

// SetCompleted flips the completion flag keeping CompletedAt consistent:
// set when the flag turns true, kept while it stays true, cleared otherwise
func (o *Objective) SetCompleted(completed bool, now time.Time) {
	switch {
	case completed && !o.IsCompleted:
		o.CompletedAt = &now
	case completed && o.CompletedAt == nil:
		o.CompletedAt = &now
	case !completed:
		o.CompletedAt = nil
	}
	o.IsCompleted = completed
}

// ObjectiveCounts is a tally of a client's live objectives
type ObjectiveCounts struct {
	Total     int64
	Completed int64
}
