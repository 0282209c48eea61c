package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrRunNotFound is returned by history stores for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// HistoryStatus represents the status of a recorded run
type HistoryStatus string

const (
	HistoryStatusRunning HistoryStatus = "running"
	HistoryStatusSuccess HistoryStatus = "success"
	HistoryStatusFailed  HistoryStatus = "failed"
	HistoryStatusInvalid HistoryStatus = "invalid"
)

// NodeRecord records the execution of a single node
type NodeRecord struct {
	NodeID    string        `json:"node_id"`
	Action    string        `json:"action"`
	Status    LogStatus     `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	Output    any           `json:"output,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ExecutionHistory records the complete path of one run
type ExecutionHistory struct {
	RunID        string        `json:"run_id"`
	WorkflowName string        `json:"workflow_name"`
	Status       HistoryStatus `json:"status"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time,omitempty"`
	Duration     time.Duration `json:"duration"`
	FailedNode   string        `json:"failed_node,omitempty"`
	Error        string        `json:"error,omitempty"`
	Unreached    []string      `json:"unreached,omitempty"`
	Nodes        []*NodeRecord `json:"nodes"`
	Graph        *Graph        `json:"graph,omitempty"`
}

// GetNodeByID returns the record for a specific node
func (h *ExecutionHistory) GetNodeByID(nodeID string) *NodeRecord {
	for _, n := range h.Nodes {
		if n.NodeID == nodeID {
			return n
		}
	}
	return nil
}

// HistoryRecorder is a LogSink that builds an ExecutionHistory from the
// log stream of one run. Call Complete with the RunResult afterwards.
type HistoryRecorder struct {
	mu      sync.RWMutex
	history *ExecutionHistory
	actions map[string]string
}

// NewHistoryRecorder starts a history for graph under runID.
func NewHistoryRecorder(runID string, graph *Graph) *HistoryRecorder {
	h := &ExecutionHistory{
		RunID:     runID,
		Status:    HistoryStatusRunning,
		StartTime: time.Now(),
		Nodes:     make([]*NodeRecord, 0),
	}
	actions := map[string]string{}
	if graph != nil {
		h.WorkflowName = graph.WorkflowName
		h.Graph = graph.Clone()
		for _, n := range graph.Nodes {
			if _, ok := actions[n.ID]; !ok {
				actions[n.ID] = n.Action
			}
		}
	}
	return &HistoryRecorder{history: h, actions: actions}
}

// Emit implements LogSink.
func (r *HistoryRecorder) Emit(log ExecutionLog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch log.Status {
	case LogStatusRunning, LogStatusPending:
		r.history.Nodes = append(r.history.Nodes, &NodeRecord{
			NodeID:    log.NodeID,
			Action:    r.actions[log.NodeID],
			Status:    log.Status,
			StartTime: time.UnixMilli(log.StartTime),
		})
	default:
		rec := r.lastRecord(log.NodeID)
		if rec == nil {
			rec = &NodeRecord{NodeID: log.NodeID, Action: r.actions[log.NodeID]}
			r.history.Nodes = append(r.history.Nodes, rec)
		}
		rec.Status = log.Status
		rec.Output = log.Output
		rec.Error = log.Error
		if log.EndTime > 0 {
			rec.EndTime = time.UnixMilli(log.EndTime)
			if !rec.StartTime.IsZero() {
				rec.Duration = rec.EndTime.Sub(rec.StartTime)
			}
		}
	}
}

func (r *HistoryRecorder) lastRecord(nodeID string) *NodeRecord {
	for i := len(r.history.Nodes) - 1; i >= 0; i-- {
		if r.history.Nodes[i].NodeID == nodeID {
			return r.history.Nodes[i]
		}
	}
	return nil
}

// Complete closes the history with the run's final result.
func (r *HistoryRecorder) Complete(result *RunResult) *ExecutionHistory {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.history
	if result == nil {
		h.Status = HistoryStatusFailed
		h.EndTime = time.Now()
		h.Duration = h.EndTime.Sub(h.StartTime)
		return h
	}

	if result.RunID != "" {
		h.RunID = result.RunID
	}
	h.StartTime = result.StartedAt
	h.EndTime = result.EndedAt
	h.Duration = result.Duration
	h.FailedNode = result.FailedNode
	h.Error = result.Error
	h.Unreached = append([]string(nil), result.Unreached...)

	switch result.Status {
	case RunStatusSuccess:
		h.Status = HistoryStatusSuccess
	case RunStatusInvalid:
		h.Status = HistoryStatusInvalid
	default:
		h.Status = HistoryStatusFailed
	}
	return h
}

// History returns a copy of the history as recorded so far.
func (r *HistoryRecorder) History() *ExecutionHistory {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cp := *r.history
	cp.Nodes = make([]*NodeRecord, len(r.history.Nodes))
	for i, n := range r.history.Nodes {
		nc := *n
		cp.Nodes[i] = &nc
	}
	cp.Unreached = append([]string(nil), r.history.Unreached...)
	return &cp
}

// HistoryStore persists run histories.
type HistoryStore interface {
	Save(ctx context.Context, h *ExecutionHistory) error
	Get(ctx context.Context, runID string) (*ExecutionHistory, error)
	// List returns the most recent runs first; limit <= 0 means no limit.
	List(ctx context.Context, limit int) ([]*ExecutionHistory, error)
}

// MemoryHistoryStore keeps histories in memory.
type MemoryHistoryStore struct {
	histories map[string]*ExecutionHistory
	mu        sync.RWMutex
}

// NewMemoryHistoryStore creates an empty in-memory store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{histories: make(map[string]*ExecutionHistory)}
}

func (s *MemoryHistoryStore) Save(_ context.Context, h *ExecutionHistory) error {
	if h == nil || h.RunID == "" {
		return errors.New("history requires a run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[h.RunID] = h
	return nil
}

func (s *MemoryHistoryStore) Get(_ context.Context, runID string) (*ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return h, nil
}

func (s *MemoryHistoryStore) List(_ context.Context, limit int) ([]*ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ExecutionHistory, 0, len(s.histories))
	for _, h := range s.histories {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].RunID > out[j].RunID
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
