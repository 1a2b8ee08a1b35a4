package task

import "fmt"

// priority lists statuses from highest to lowest precedence when aggregating.
var priority = []Status{
	StatusRunning,
	StatusPending,
	StatusFailed,
	StatusCancelled,
	StatusSkipped,
	StatusCompleted,
	StatusIdle,
}

// Aggregate reduces a collection of statuses into one representative group status.
//
// The highest-priority status present wins, except that completed is only returned when
// every status is completed. A mixed collection whose best pick is completed is
// re-aggregated without its completed members.
func Aggregate(statuses ...Status) Status {
	if len(statuses) == 0 {
		return StatusIdle
	}

	present := make(map[Status]bool, len(statuses))
	for _, s := range statuses {
		present[s] = true
	}

	best := StatusIdle
	for _, s := range priority {
		if present[s] {
			best = s
			break
		}
	}

	if best != StatusCompleted || len(present) == 1 {
		return best
	}

	rest := make([]Status, 0, len(statuses))
	for _, s := range statuses {
		if s != StatusCompleted {
			rest = append(rest, s)
		}
	}
	return Aggregate(rest...)
}

// Highlighted reports whether a status should be visually distinguished from idle.
func Highlighted(s Status) bool {
	return s != StatusIdle
}

// Describe returns a pluralized phrase summarizing a group of count tasks with status s.
func Describe(s Status, count int) string {
	noun := "tasks"
	if count == 1 {
		noun = "task"
	}

	var phrase string
	switch s {
	case StatusCompleted:
		phrase = "all completed"
	case StatusIdle:
		phrase = "ready to run"
	default:
		phrase = "one or more " + string(s)
	}

	return fmt.Sprintf("%d %s, %s", count, noun, phrase)
}
