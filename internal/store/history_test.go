package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/BaSui01/flowrunner/internal/database"
	"github.com/BaSui01/flowrunner/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

func newStore(t *testing.T) *GormHistoryStore {
	t.Helper()
	cfg := database.DefaultPoolConfig()
	cfg.MaxOpenConns = 1
	cfg.MaxIdleConns = 1

	pool, err := database.Open(database.DriverSQLite, filepath.Join(t.TempDir(), "runs.db"), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	s := NewGormHistoryStore(pool, zap.NewNop())
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func sampleHistory(runID string, started time.Time) *workflow.ExecutionHistory {
	return &workflow.ExecutionHistory{
		RunID:        runID,
		WorkflowName: "Daily TechCrunch Summary",
		Status:       workflow.HistoryStatusFailed,
		StartTime:    started,
		EndTime:      started.Add(1500 * time.Millisecond),
		Duration:     1500 * time.Millisecond,
		FailedNode:   "ai_1",
		Error:        "model unavailable",
		Unreached:    []string{"email_1"},
		Graph: &workflow.Graph{
			WorkflowName:   "Daily TechCrunch Summary",
			Nodes:          []workflow.Node{{ID: "scraper_1", Action: "web_scraper", Params: map[string]any{"url": "https://techcrunch.com"}, DependsOn: []string{}}},
			ExecutionOrder: []string{"scraper_1"},
		},
		Nodes: []*workflow.NodeRecord{
			{
				NodeID:    "scraper_1",
				Action:    "web_scraper",
				Status:    workflow.LogStatusSuccess,
				StartTime: started,
				EndTime:   started.Add(time.Second),
				Duration:  time.Second,
				Output:    map[string]any{"title": "TechCrunch"},
			},
			{
				NodeID:    "ai_1",
				Action:    "ai_processor",
				Status:    workflow.LogStatusError,
				StartTime: started.Add(time.Second),
				EndTime:   started.Add(1500 * time.Millisecond),
				Duration:  500 * time.Millisecond,
				Error:     "model unavailable",
			},
		},
	}
}

func TestGormHistoryStore_SaveAndGet(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	started := time.Date(2026, 5, 6, 9, 30, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, sampleHistory("run-1", started)))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Daily TechCrunch Summary", got.WorkflowName)
	assert.Equal(t, workflow.HistoryStatusFailed, got.Status)
	assert.True(t, got.StartTime.Equal(started))
	assert.True(t, got.EndTime.Equal(started.Add(1500*time.Millisecond)))
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	assert.Equal(t, "ai_1", got.FailedNode)
	assert.Equal(t, []string{"email_1"}, got.Unreached)
	require.NotNil(t, got.Graph)
	assert.Equal(t, "https://techcrunch.com", got.Graph.Nodes[0].Params["url"])

	require.Len(t, got.Nodes, 2)
	assert.Equal(t, "scraper_1", got.Nodes[0].NodeID)
	assert.Equal(t, map[string]any{"title": "TechCrunch"}, got.Nodes[0].Output)
	assert.True(t, got.Nodes[0].StartTime.Equal(started))
	assert.Equal(t, "ai_1", got.Nodes[1].NodeID)
	assert.Nil(t, got.Nodes[1].Output)
	assert.Equal(t, "model unavailable", got.Nodes[1].Error)
	assert.Equal(t, 500*time.Millisecond, got.Nodes[1].Duration)
}

func TestGormHistoryStore_SaveReplacesNodes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	h := sampleHistory("run-1", started)
	h.Status = workflow.HistoryStatusRunning
	h.Nodes = h.Nodes[:1]
	h.EndTime = time.Time{}
	require.NoError(t, s.Save(ctx, h))

	h = sampleHistory("run-1", started)
	require.NoError(t, s.Save(ctx, h))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.HistoryStatusFailed, got.Status)
	assert.Len(t, got.Nodes, 2)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGormHistoryStore_RunningRunHasNoEndTime(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	h := sampleHistory("run-1", time.Now().UTC())
	h.EndTime = time.Time{}
	h.Unreached = nil
	h.Graph = nil
	require.NoError(t, s.Save(ctx, h))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, got.EndTime.IsZero())
	assert.Nil(t, got.Unreached)
	assert.Nil(t, got.Graph)
}

func TestGormHistoryStore_GetUnknownRun(t *testing.T) {
	s := newStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(err, workflow.ErrRunNotFound))
}

func TestGormHistoryStore_ListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, sampleHistory(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "run-4", all[0].RunID)
	assert.Equal(t, "run-0", all[4].RunID)
	assert.Len(t, all[0].Nodes, 2)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "run-4", limited[0].RunID)
	assert.Equal(t, "run-3", limited[1].RunID)
}

func TestGormHistoryStore_RejectsMissingRunID(t *testing.T) {
	s := newStore(t)
	assert.Error(t, s.Save(context.Background(), nil))
	assert.Error(t, s.Save(context.Background(), &workflow.ExecutionHistory{}))
}

func TestGormHistoryStore_RecorderOutput(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	g := &workflow.Graph{
		WorkflowName:   "one step",
		Nodes:          []workflow.Node{{ID: "f", Action: "data_filter", Params: map[string]any{}}},
		ExecutionOrder: []string{"f"},
	}
	rec := workflow.NewHistoryRecorder("run-rec", g)
	now := time.Now()
	rec.Emit(workflow.ExecutionLog{NodeID: "f", Status: workflow.LogStatusRunning, StartTime: now.UnixMilli()})
	rec.Emit(workflow.ExecutionLog{NodeID: "f", Status: workflow.LogStatusSuccess, StartTime: now.UnixMilli(), EndTime: now.Add(5 * time.Millisecond).UnixMilli(), Output: []any{"a", "b"}})
	h := rec.Complete(&workflow.RunResult{RunID: "run-rec", Status: workflow.RunStatusSuccess, StartedAt: now, EndedAt: now.Add(10 * time.Millisecond), Duration: 10 * time.Millisecond})

	require.NoError(t, s.Save(ctx, h))
	got, err := s.Get(ctx, "run-rec")
	require.NoError(t, err)
	assert.Equal(t, workflow.HistoryStatusSuccess, got.Status)
	require.Len(t, got.Nodes, 1)
	assert.Equal(t, "data_filter", got.Nodes[0].Action)
	assert.Equal(t, []any{"a", "b"}, got.Nodes[0].Output)
}

func TestEpochMillisRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ms := rapid.Int64Range(1, 4102444800000).Draw(t, "ms")
		ts := time.UnixMilli(ms)
		assert.Equal(t, ms, epochMillis(fromMillis(epochMillis(ts))))
	})
	assert.Equal(t, int64(0), epochMillis(time.Time{}))
	assert.True(t, fromMillis(0).IsZero())
}
