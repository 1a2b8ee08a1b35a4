package task

// Status represents the lifecycle state of a task or one of its executions.
type Status string

const (
	StatusIdle      Status = "idle"      // No execution recorded for the task
	StatusPending   Status = "pending"   // Admitted, runner not yet invoked
	StatusRunning   Status = "running"   // Runner is executing
	StatusCompleted Status = "completed" // Finished successfully
	StatusFailed    Status = "failed"    // Finished with error
	StatusCancelled Status = "cancelled" // Stopped before finishing
	StatusSkipped   Status = "skipped"   // Runner reported the task as skipped
)

// Terminal reports whether the status ends an execution.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped:
		return true
	default:
		return false
	}
}

// Active reports whether the status belongs to an in-flight execution.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusRunning
}

// Task is an immutable definition of a runnable unit produced by a framework adapter.
// A catalog refresh replaces tasks wholesale; they are never mutated in place.
type Task struct {
	ID               string            // Unique stable identifier (e.g. "tests-3.11")
	Name             string            // Display/grouping label, not unique
	Description      string            // Optional human-readable description
	WorkingDirectory string            // Absolute path the task executes in
	FrameworkName    string            // Key into the framework registry
	Parameters       map[string]string // Parameter name -> value
	CategoryTags     []string          // Free-form labels, order irrelevant
	MatrixGroup      string            // Groups parameterized variants ("" when not a variant)
	IsDefault        bool              // Selected when the framework runs without explicit selection
}

// HasTag reports whether the task carries the given category tag.
func (t Task) HasTag(tag string) bool {
	for _, tg := range t.CategoryTags {
		if tg == tag {
			return true
		}
	}
	return false
}
