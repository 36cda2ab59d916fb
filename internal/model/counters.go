package model

import "time"

// CounterDelta is a sparse set of signed adjustments to a client's counters.
// A nil Touch leaves lastActivity unchanged
type CounterDelta struct {
	ObjectivesCount     int64
	ObjectivesCompleted int64
	ObjectivesPending   int64
	TasksCompleted      int64
	TasksInProgress     int64
	TasksPending        int64
	Touch               *time.Time
}

// IsZero reports whether applying the delta would change nothing
func (d CounterDelta) IsZero() bool {
	return d.Touch == nil && !d.HasCounts()
}

// HasCounts reports whether any counter adjustment is non-zero
func (d CounterDelta) HasCounts() bool {
	return d.ObjectivesCount != 0 || d.ObjectivesCompleted != 0 || d.ObjectivesPending != 0 ||
		d.TasksCompleted != 0 || d.TasksInProgress != 0 || d.TasksPending != 0
}

// Plus merges two deltas. The later Touch wins
func (d CounterDelta) Plus(o CounterDelta) CounterDelta {
	d.ObjectivesCount += o.ObjectivesCount
	d.ObjectivesCompleted += o.ObjectivesCompleted
	d.ObjectivesPending += o.ObjectivesPending
	d.TasksCompleted += o.TasksCompleted
	d.TasksInProgress += o.TasksInProgress
	d.TasksPending += o.TasksPending
	if o.Touch != nil && (d.Touch == nil || o.Touch.After(*d.Touch)) {
		d.Touch = o.Touch
	}
	return d
}

// Touch bumps lastActivity only
func Touch(at time.Time) CounterDelta {
	return CounterDelta{Touch: &at}
}

// ObjectiveAdded accounts for a new live objective
func ObjectiveAdded(completed bool) CounterDelta {
	d := CounterDelta{ObjectivesCount: 1}
	if completed {
		d.ObjectivesCompleted = 1
	} else {
		d.ObjectivesPending = 1
	}
	return d
}

// ObjectiveRemoved reverses ObjectiveAdded for an objective's prior state
func ObjectiveRemoved(completed bool) CounterDelta {
	d := CounterDelta{ObjectivesCount: -1}
	if completed {
		d.ObjectivesCompleted = -1
	} else {
		d.ObjectivesPending = -1
	}
	return d
}

// ObjectiveCompletionChanged moves one objective between completed and pending
func ObjectiveCompletionChanged(nowCompleted bool) CounterDelta {
	if nowCompleted {
		return CounterDelta{ObjectivesCompleted: 1, ObjectivesPending: -1}
	}
	return CounterDelta{ObjectivesCompleted: -1, ObjectivesPending: 1}
}

// TaskAdded accounts for a new task in the given status
func TaskAdded(status string) CounterDelta {
	return taskBucket(status, 1)
}

// TaskRemoved reverses TaskAdded
func TaskRemoved(status string) CounterDelta {
	return taskBucket(status, -1)
}

// TaskStatusMoved moves one task between status buckets
func TaskStatusMoved(from, to string) CounterDelta {
	if from == to {
		return CounterDelta{}
	}
	return taskBucket(from, -1).Plus(taskBucket(to, 1))
}

func taskBucket(status string, n int64) CounterDelta {
	switch status {
	case TaskCompleted:
		return CounterDelta{TasksCompleted: n}
	case TaskInProgress:
		return CounterDelta{TasksInProgress: n}
	default:
		return CounterDelta{TasksPending: n}
	}
}

// Apply returns the counters after adding d. Used by in-memory checks and tests;
// stores apply deltas with atomic increments
func (c ClientCounters) Apply(d CounterDelta) ClientCounters {
	c.ObjectivesCount += d.ObjectivesCount
	c.ObjectivesCompleted += d.ObjectivesCompleted
	c.ObjectivesPending += d.ObjectivesPending
	c.TasksCompleted += d.TasksCompleted
	c.TasksInProgress += d.TasksInProgress
	c.TasksPending += d.TasksPending
	return c
}
