package execution

import "github.com/eapache/queue"

// history is a bounded ring of terminal executions. New entries go to the tail of the
// ring and the oldest are dropped from the head, so both ends are O(1).
type history struct {
	q     *queue.Queue
	limit int
}

func newHistory(limit int) *history {
	return &history{q: queue.New(), limit: limit}
}

func (h *history) push(exec Execution) {
	h.q.Add(exec)
	h.trim()
}

func (h *history) setLimit(limit int) {
	h.limit = limit
	h.trim()
}

func (h *history) trim() {
	for h.q.Length() > h.limit {
		h.q.Remove()
	}
}

func (h *history) clear() {
	h.q = queue.New()
}

func (h *history) len() int {
	return h.q.Length()
}

// at returns the i-th most recent execution.
func (h *history) at(i int) Execution {
	return h.q.Get(-1 - i).(Execution)
}

// list returns a most-recent-first copy.
func (h *history) list() []Execution {
	n := h.q.Length()
	out := make([]Execution, n)
	for i := 0; i < n; i++ {
		out[i] = h.at(i)
	}
	return out
}

func (h *history) find(id string) (Execution, bool) {
	for i := 0; i < h.q.Length(); i++ {
		if e := h.at(i); e.ID == id {
			return e, true
		}
	}
	return Execution{}, false
}
