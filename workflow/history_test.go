package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRecorder_RecordsFailedRun(t *testing.T) {
	d := newMockDispatcher()
	d.outputs["scheduler"] = "tick"
	d.errs["web_scraper"] = errors.New("unreachable")

	g := chainGraph()
	rec := NewHistoryRecorder("run-1", g)
	result := NewExecutor(d, WithIDGenerator(func() string { return "run-1" })).Run(context.Background(), g, rec)
	h := rec.Complete(result)

	assert.Equal(t, "run-1", h.RunID)
	assert.Equal(t, "chain", h.WorkflowName)
	assert.Equal(t, HistoryStatusFailed, h.Status)
	assert.Equal(t, "B", h.FailedNode)
	assert.Equal(t, []string{"C"}, h.Unreached)
	require.Len(t, h.Nodes, 2)

	a := h.GetNodeByID("A")
	require.NotNil(t, a)
	assert.Equal(t, "scheduler", a.Action)
	assert.Equal(t, LogStatusSuccess, a.Status)
	assert.Equal(t, "tick", a.Output)

	b := h.GetNodeByID("B")
	require.NotNil(t, b)
	assert.Equal(t, LogStatusError, b.Status)
	assert.Equal(t, "unreachable", b.Error)
	assert.Nil(t, h.GetNodeByID("C"))
	assert.NotNil(t, h.Graph)
}

func TestHistoryRecorder_StatusMapping(t *testing.T) {
	tests := map[RunStatus]HistoryStatus{
		RunStatusSuccess: HistoryStatusSuccess,
		RunStatusFailed:  HistoryStatusFailed,
		RunStatusInvalid: HistoryStatusInvalid,
	}
	for rs, hs := range tests {
		rec := NewHistoryRecorder("r", nil)
		h := rec.Complete(&RunResult{RunID: "r", Status: rs})
		assert.Equal(t, hs, h.Status)
	}
}

func TestHistoryRecorder_HistoryIsACopy(t *testing.T) {
	rec := NewHistoryRecorder("r", chainGraph())
	rec.Emit(ExecutionLog{NodeID: "A", Status: LogStatusRunning, StartTime: time.Now().UnixMilli()})

	snap := rec.History()
	snap.Nodes[0].Status = LogStatusError

	assert.Equal(t, HistoryStatusRunning, rec.History().Status)
	assert.Equal(t, LogStatusRunning, rec.History().Nodes[0].Status)
}

func TestMemoryHistoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryHistoryStore()

	base := time.Now()
	for i, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.Save(ctx, &ExecutionHistory{
			RunID:     id,
			StartTime: base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := store.Get(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, "r2", got.RunID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)

	list, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].RunID)
	assert.Equal(t, "r2", list[1].RunID)

	all, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Error(t, store.Save(ctx, &ExecutionHistory{}))
}
