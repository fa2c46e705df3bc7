package tui

import (
	"time"

	"github.com/issueradar/issueradar/internal/digest"
)

// TaskID identifies a task in the TUI progress display.
type TaskID int

const (
	TaskAuth  TaskID = iota // Checking GitHub access and rate limit
	TaskFetch               // Walking issue pages
	TaskAsk                 // Waiting for the model's summary
	TaskSave                // Persisting the digest
)

// TaskStatus represents the current status of a task.
type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusRunning
	StatusComplete
	StatusError
	StatusSkipped
)

// Event is the interface for all TUI events.
type Event interface {
	isEvent()
}

// TaskEvent represents an update to a task's status.
type TaskEvent struct {
	Task     TaskID
	Status   TaskStatus
	Message  string  // Optional message (e.g., "page 2/5")
	Count    int     // Count of items (e.g., issues fetched)
	Progress float64 // Share of the page budget read, 0.0 to 1.0
	Error    error   // Error if status is StatusError
}

func (TaskEvent) isEvent() {}

// RateLimitEvent reports that GitHub's primary rate limit is exhausted.
type RateLimitEvent struct {
	Limited bool
	ResetAt time.Time
}

func (RateLimitEvent) isEvent() {}

// DoneEvent signals that all work is complete.
type DoneEvent struct{}

func (DoneEvent) isEvent() {}

var stageTasks = map[digest.Stage]TaskID{
	digest.StageFetchingIssues: TaskFetch,
	digest.StageAskingModel:    TaskAsk,
	digest.StageSaving:         TaskSave,
}

var stageStatuses = map[digest.Status]TaskStatus{
	digest.StatusRunning:  StatusRunning,
	digest.StatusComplete: StatusComplete,
	digest.StatusError:    StatusError,
}

// FromDigestEvent converts a digest stage event into a task event.
func FromDigestEvent(e digest.Event) TaskEvent {
	return TaskEvent{
		Task:     stageTasks[e.Stage],
		Status:   stageStatuses[e.Status],
		Message:  e.Message,
		Count:    e.Count,
		Progress: e.Progress,
		Error:    e.Err,
	}
}
