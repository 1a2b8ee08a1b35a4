package execution

import "github.com/aristath/taskdeck/internal/framework"

// Observer receives execution lifecycle events.
// Hooks run synchronously on the goroutine that caused the transition, in registration
// order. They may be called many times in quick succession; consumers should batch their
// own expensive work.
type Observer interface {
	// OnExecutionStarted is called once, when an execution is admitted.
	OnExecutionStarted(exec Execution)

	// OnStateChanged is called for every transition, including into terminal states.
	OnStateChanged(exec Execution)

	// OnExecutionCompleted is called when an execution ends with status completed.
	OnExecutionCompleted(exec Execution)

	// OnExecutionFailed is called when an execution ends with status failed.
	OnExecutionFailed(exec Execution)

	// OnOutputReceived is called for output chunks streamed by the runner.
	OnOutputReceived(execID string, chunk string, stream framework.Stream)
}

// ObserverFuncs adapts optional functions to the Observer interface. Nil fields are skipped.
type ObserverFuncs struct {
	Started      func(Execution)
	StateChanged func(Execution)
	Completed    func(Execution)
	Failed       func(Execution)
	Output       func(execID, chunk string, stream framework.Stream)
}

func (f *ObserverFuncs) OnExecutionStarted(exec Execution) {
	if f.Started != nil {
		f.Started(exec)
	}
}

func (f *ObserverFuncs) OnStateChanged(exec Execution) {
	if f.StateChanged != nil {
		f.StateChanged(exec)
	}
}

func (f *ObserverFuncs) OnExecutionCompleted(exec Execution) {
	if f.Completed != nil {
		f.Completed(exec)
	}
}

func (f *ObserverFuncs) OnExecutionFailed(exec Execution) {
	if f.Failed != nil {
		f.Failed(exec)
	}
}

func (f *ObserverFuncs) OnOutputReceived(execID, chunk string, stream framework.Stream) {
	if f.Output != nil {
		f.Output(execID, chunk, stream)
	}
}
