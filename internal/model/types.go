package model

import (
	"encoding/json"
	"time"
)

type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Icon        *string   `json:"icon"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Project may be unassigned (nil OrganizationID).
type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	OrganizationID *string   `json:"organizationId"`
	Color          *string   `json:"color"`
	Icon           *string   `json:"icon"`
	Type           *string   `json:"type"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Task is a unit of structured work. A task without AssignedAgentID is
// invisible to agent-scoped queries.
type Task struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     *string    `json:"description"`
	ProjectID       *string    `json:"projectId"`
	OrganizationID  *string    `json:"organizationId"`
	AssignedAgentID *string    `json:"assignedAgentId"`
	ParentID        *string    `json:"parentId"`
	Status          TaskStatus `json:"status"`
	Priority        *string    `json:"priority"`
	DueDate         *time.Time `json:"dueDate"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// QueueItem tracks one automation request through queued, in_progress and done.
type QueueItem struct {
	ID          string      `json:"id"`
	Task        string      `json:"task"`
	Status      QueueStatus `json:"status"`
	SessionKey  *string     `json:"sessionKey"`
	StartedAt   *time.Time  `json:"startedAt"`
	CompletedAt *time.Time  `json:"completedAt"`
	CreatedAt   time.Time   `json:"createdAt"`
}

type Notification struct {
	ID          string    `json:"id"`
	AgentID     string    `json:"agentId"`
	FromAgentID *string   `json:"fromAgentId"`
	TaskID      *string   `json:"taskId"`
	Content     string    `json:"content"`
	Delivered   bool      `json:"delivered"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// InboxItem is a captured note or link awaiting triage. Metadata is opaque
// JSON kept verbatim.
type InboxItem struct {
	ID        string          `json:"id"`
	Content   string          `json:"content"`
	Type      string          `json:"type"`
	URL       *string         `json:"url"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Report struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Date      string          `json:"date"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// GauntletRun is a persisted idea-gauntlet evaluation. Result holds the
// structured analysis payload.
type GauntletRun struct {
	ID         string          `json:"id"`
	Idea       string          `json:"idea"`
	Result     json.RawMessage `json:"result"`
	Verdict    *string         `json:"verdict"`
	Confidence *int            `json:"confidence"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// TaskComment is an agent's note on a task. Attachments is opaque JSON.
type TaskComment struct {
	ID          string          `json:"id"`
	TaskID      string          `json:"taskId"`
	AgentID     string          `json:"agentId"`
	Content     string          `json:"content"`
	Attachments json.RawMessage `json:"attachments"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Activity is one entry of the activity feed, either logged explicitly or
// recorded from a lifecycle event.
type Activity struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	AgentID   *string         `json:"agentId"`
	TaskID    *string         `json:"taskId"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

func (q QueueItem) Clone() QueueItem {
	out := q
	out.SessionKey = cloneString(q.SessionKey)
	out.StartedAt = cloneTime(q.StartedAt)
	out.CompletedAt = cloneTime(q.CompletedAt)
	return out
}

func (t Task) Clone() Task {
	out := t
	out.Description = cloneString(t.Description)
	out.ProjectID = cloneString(t.ProjectID)
	out.OrganizationID = cloneString(t.OrganizationID)
	out.AssignedAgentID = cloneString(t.AssignedAgentID)
	out.ParentID = cloneString(t.ParentID)
	out.Priority = cloneString(t.Priority)
	out.DueDate = cloneTime(t.DueDate)
	return out
}

func (n Notification) Clone() Notification {
	out := n
	out.FromAgentID = cloneString(n.FromAgentID)
	out.TaskID = cloneString(n.TaskID)
	return out
}

// StringValue returns the pointed-to string or "" for nil.
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// StringPtr returns nil for an empty string.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Now is the service clock. Timestamps are persisted with millisecond
// precision, so the clock truncates to match.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
