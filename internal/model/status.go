package model

import (
	"fmt"
	"strings"
)

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusInProgress QueueStatus = "in_progress"
	QueueStatusDone       QueueStatus = "done"
)

// ParseQueueStatus accepts only the three lifecycle states.
func ParseQueueStatus(raw string) (QueueStatus, error) {
	switch s := QueueStatus(strings.TrimSpace(raw)); s {
	case QueueStatusQueued, QueueStatusInProgress, QueueStatusDone:
		return s, nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("unknown queue status %q", raw))
	}
}

// TransitionKind describes how a requested queue status change is applied.
type TransitionKind int

const (
	TransitionInvalid TransitionKind = iota
	// TransitionNoop re-enters the current state without touching timestamps.
	TransitionNoop
	TransitionStart
	TransitionComplete
)

// ClassifyTransition returns how from -> to must be applied. Backward edges
// are invalid.
func ClassifyTransition(from, to QueueStatus) TransitionKind {
	switch {
	case from == to:
		return TransitionNoop
	case from == QueueStatusQueued && to == QueueStatusInProgress:
		return TransitionStart
	case to == QueueStatusDone && (from == QueueStatusQueued || from == QueueStatusInProgress):
		return TransitionComplete
	default:
		return TransitionInvalid
	}
}

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusNotStarted TaskStatus = "not_started"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusWaiting    TaskStatus = "waiting"
	TaskStatusDone       TaskStatus = "done"
)

const unknownTaskStatusRank = 3

var taskStatusRank = map[TaskStatus]int{
	TaskStatusInProgress: 0,
	TaskStatusTodo:       1,
	TaskStatusNotStarted: 1,
	TaskStatusWaiting:    2,
	TaskStatusDone:       4,
}

// Rank orders statuses for retrieval: active work first, finished work last.
// Statuses outside the known set sort after waiting and before done.
func (s TaskStatus) Rank() int {
	if r, ok := taskStatusRank[s]; ok {
		return r
	}
	return unknownTaskStatusRank
}
