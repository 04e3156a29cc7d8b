package models

import "time"

// Reward units accepted by the /task grammar.
const (
	RewardGems          = "gems"
	RewardTokens        = "tokens"
	RewardCoinsPerGlory = "coins/glory"
)

// Task lifecycle states derived from the window; a task row that has been
// deleted after retention is simply absent.
const (
	TaskScheduled = "scheduled"
	TaskOpen      = "open"
	TaskEnded     = "ended"
)

// Task is one admin-declared, time-boxed activity scoped to a chat.
type Task struct {
	ID             string     `json:"id"`
	ChatID         int64      `json:"chat_id"`
	Description    string     `json:"description"`
	RewardValue    float64    `json:"reward_value"`
	RewardUnit     string     `json:"reward_unit"`
	StartAt        time.Time  `json:"start_at"`
	EndAt          time.Time  `json:"end_at"`
	AnnouncementID *int64     `json:"announcement_id,omitempty"`
	Ended          bool       `json:"ended"`
	Results        *string    `json:"results,omitempty"`
	CreatedBy      int64      `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// StateAt reports the lifecycle state at the given instant.
func (t *Task) StateAt(now time.Time) string {
	switch {
	case t.Ended || !now.Before(t.EndAt):
		return TaskEnded
	case now.Before(t.StartAt):
		return TaskScheduled
	default:
		return TaskOpen
	}
}

// Submission is a user's start/end glory observation pair for one task.
// EndValue is only ever set after StartValue and neither is overwritten.
type Submission struct {
	TaskID     string     `json:"task_id"`
	UserID     int64      `json:"user_id"`
	StartValue int64      `json:"start_value"`
	EndValue   *int64     `json:"end_value,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
