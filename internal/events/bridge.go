package events

import (
	"sync"
	"time"

	"github.com/aristath/taskdeck/internal/execution"
	"github.com/aristath/taskdeck/internal/framework"
)

// Bridge is an execution observer that republishes every hook on TopicExecution.
type Bridge struct {
	bus *EventBus

	mu    sync.Mutex
	tasks map[string]string // execution ID -> task ID, for output events
}

var _ execution.Observer = (*Bridge)(nil)

// NewBridge creates a bridge publishing to bus.
func NewBridge(bus *EventBus) *Bridge {
	return &Bridge{bus: bus, tasks: make(map[string]string)}
}

func (b *Bridge) OnExecutionStarted(exec execution.Execution) {
	b.mu.Lock()
	b.tasks[exec.ID] = exec.Task.ID
	b.mu.Unlock()

	b.bus.Publish(TopicExecution, ExecutionStartedEvent{Execution: exec, Timestamp: time.Now()})
}

func (b *Bridge) OnStateChanged(exec execution.Execution) {
	if exec.Status.Terminal() {
		b.mu.Lock()
		delete(b.tasks, exec.ID)
		b.mu.Unlock()
	}

	b.bus.Publish(TopicExecution, ExecutionStateChangedEvent{Execution: exec, Timestamp: time.Now()})
}

func (b *Bridge) OnExecutionCompleted(exec execution.Execution) {
	b.bus.Publish(TopicExecution, ExecutionCompletedEvent{Execution: exec, Timestamp: time.Now()})
}

func (b *Bridge) OnExecutionFailed(exec execution.Execution) {
	b.bus.Publish(TopicExecution, ExecutionFailedEvent{Execution: exec, Timestamp: time.Now()})
}

func (b *Bridge) OnOutputReceived(execID, chunk string, stream framework.Stream) {
	b.mu.Lock()
	taskID := b.tasks[execID]
	b.mu.Unlock()

	b.bus.Publish(TopicExecution, ExecutionOutputEvent{
		ExecutionID: execID,
		Task:        taskID,
		Line:        chunk,
		Stream:      stream,
		Timestamp:   time.Now(),
	})
}
