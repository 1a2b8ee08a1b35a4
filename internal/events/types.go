package events

import (
	"time"

	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/framework"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic constants
const (
	TopicExecution = "execution"
	TopicCatalog   = "catalog"
)

// Event type constants
const (
	EventTypeExecutionStarted      = "execution.started"
	EventTypeExecutionStateChanged = "execution.state_changed"
	EventTypeExecutionCompleted    = "execution.completed"
	EventTypeExecutionFailed       = "execution.failed"
	EventTypeExecutionOutput       = "execution.output"
	EventTypeCatalogRefreshed      = "catalog.refreshed"
)

// ExecutionStartedEvent is published when an execution is admitted.
type ExecutionStartedEvent struct {
	Execution execution.Execution
	Timestamp time.Time
}

func (e ExecutionStartedEvent) EventType() string { return EventTypeExecutionStarted }
func (e ExecutionStartedEvent) TaskID() string    { return e.Execution.Task.ID }

// ExecutionStateChangedEvent is published on every status transition.
type ExecutionStateChangedEvent struct {
	Execution execution.Execution
	Timestamp time.Time
}

func (e ExecutionStateChangedEvent) EventType() string { return EventTypeExecutionStateChanged }
func (e ExecutionStateChangedEvent) TaskID() string    { return e.Execution.Task.ID }

// ExecutionCompletedEvent is published when an execution completes successfully.
type ExecutionCompletedEvent struct {
	Execution execution.Execution
	Timestamp time.Time
}

func (e ExecutionCompletedEvent) EventType() string { return EventTypeExecutionCompleted }
func (e ExecutionCompletedEvent) TaskID() string    { return e.Execution.Task.ID }

// ExecutionFailedEvent is published when an execution fails.
type ExecutionFailedEvent struct {
	Execution execution.Execution
	Timestamp time.Time
}

func (e ExecutionFailedEvent) EventType() string { return EventTypeExecutionFailed }
func (e ExecutionFailedEvent) TaskID() string    { return e.Execution.Task.ID }

// ExecutionOutputEvent is published for every output line a runner streams.
type ExecutionOutputEvent struct {
	ExecutionID string
	Task        string // Task ID, empty if the execution was not seen starting
	Line        string
	Stream      framework.Stream
	Timestamp   time.Time
}

func (e ExecutionOutputEvent) EventType() string { return EventTypeExecutionOutput }
func (e ExecutionOutputEvent) TaskID() string    { return e.Task }

// CatalogRefreshedEvent is published after the task catalog is replaced.
type CatalogRefreshedEvent struct {
	Tasks     int
	Timestamp time.Time
}

func (e CatalogRefreshedEvent) EventType() string { return EventTypeCatalogRefreshed }
func (e CatalogRefreshedEvent) TaskID() string    { return "" }
