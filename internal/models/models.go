package models

import (
	"encoding/json"
	"time"
)

// Schema is a stored JSON schema used to validate scoring responses.
type Schema struct {
	ID          int64  `json:"id" db:"id"`
	Version     string `json:"version" db:"version"`
	Description string `json:"description,omitempty" db:"description"`
	SchemaJSON  string `json:"schema_json" db:"schema_json"`
	Created     int64  `json:"created" db:"created"`
	Updated     int64  `json:"updated" db:"updated"`
}

// Template is a stored prompt template.
type Template struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Version     string  `json:"version" db:"version"`
	TemplateTxt string  `json:"template_text" db:"template_text"`
	SchemaVer   *string `json:"schema_version,omitempty" db:"schema_version"`
	Metadata    *string `json:"metadata,omitempty" db:"metadata"`
	Created     int64   `json:"created" db:"created"`
	Updated     int64   `json:"updated" db:"updated"`
}

// Task states stored in outbox_tasks.status.
const (
	TaskQueued  = "queued"
	TaskRunning = "running"
	TaskRetry   = "retry"
	TaskDone    = "done"
	TaskFailed  = "failed"
)

// Task is a durable unit of post-commit work written to the outbox in the
// same transaction as the state change that produced it.
type Task struct {
	ID          int64           `json:"id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	Priority    int             `json:"priority"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	NextTryAt   *time.Time      `json:"next_try_at,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	Created     time.Time       `json:"created"`
	Updated     time.Time       `json:"updated"`
}

// NewTask marshals payload into a queued task of the given type.
func NewTask(typ string, payload any, priority, maxAttempts int) (*Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Task{Type: typ, Payload: b, Status: TaskQueued, Priority: priority, MaxAttempts: maxAttempts, ScheduledAt: time.Now()}, nil
}
