package execution

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushN(h *history, from, to int) {
	for i := from; i <= to; i++ {
		h.push(Execution{ID: fmt.Sprintf("exec-%d", i)})
	}
}

func ids(execs []Execution) []string {
	out := make([]string, len(execs))
	for i, e := range execs {
		out[i] = e.ID
	}
	return out
}

func TestHistory_MostRecentFirst(t *testing.T) {
	h := newHistory(10)
	pushN(h, 1, 3)

	assert.Equal(t, []string{"exec-3", "exec-2", "exec-1"}, ids(h.list()))
	assert.Equal(t, "exec-3", h.at(0).ID)
}

func TestHistory_Cap(t *testing.T) {
	h := newHistory(3)
	pushN(h, 1, 5)

	require.Equal(t, 3, h.len())
	assert.Equal(t, []string{"exec-5", "exec-4", "exec-3"}, ids(h.list()))

	_, ok := h.find("exec-2")
	assert.False(t, ok)
	e, ok := h.find("exec-4")
	assert.True(t, ok)
	assert.Equal(t, "exec-4", e.ID)
}

func TestHistory_SetLimit(t *testing.T) {
	h := newHistory(5)
	pushN(h, 1, 5)

	h.setLimit(2)
	assert.Equal(t, []string{"exec-5", "exec-4"}, ids(h.list()))

	h.setLimit(0)
	assert.Zero(t, h.len())
	h.push(Execution{ID: "exec-6"})
	assert.Zero(t, h.len(), "zero limit keeps nothing")
}

func TestHistory_Clear(t *testing.T) {
	h := newHistory(5)
	pushN(h, 1, 2)
	h.clear()

	assert.Zero(t, h.len())
	assert.Empty(t, h.list())
	pushN(h, 3, 3)
	assert.Equal(t, []string{"exec-3"}, ids(h.list()))
}
