package store

import (
	"fmt"
	"time"

	"github.com/BaSui01/flowrunner/workflow"
	"github.com/goccy/go-json"
)

// runRow 对应 workflow_runs 表
type runRow struct {
	RunID        string     `gorm:"column:run_id;primaryKey;size:64"`
	WorkflowName string     `gorm:"column:workflow_name;size:255;not null;default:''"`
	Status       string     `gorm:"column:status;size:16;not null;index:idx_workflow_runs_status"`
	FailedNode   string     `gorm:"column:failed_node;size:255;not null;default:''"`
	Error        string     `gorm:"column:error;type:text;not null;default:''"`
	Unreached    string     `gorm:"column:unreached;type:text;not null;default:'[]'"`
	Graph        *string    `gorm:"column:graph;type:text"`
	StartedAt    time.Time  `gorm:"column:started_at;not null;index:idx_workflow_runs_started_at"`
	EndedAt      *time.Time `gorm:"column:ended_at"`
	DurationMS   int64      `gorm:"column:duration_ms;not null;default:0"`

	Nodes []nodeRow `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

func (runRow) TableName() string { return "workflow_runs" }

// nodeRow 对应 workflow_node_runs 表；start_time/end_time 为 epoch 毫秒，0 表示未设置
type nodeRow struct {
	ID         uint    `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string  `gorm:"column:run_id;size:64;not null;index:idx_workflow_node_runs_run_id,priority:1"`
	Seq        int     `gorm:"column:seq;not null;index:idx_workflow_node_runs_run_id,priority:2"`
	NodeID     string  `gorm:"column:node_id;size:255;not null"`
	Action     string  `gorm:"column:action;size:64;not null;default:''"`
	Status     string  `gorm:"column:status;size:16;not null"`
	StartTime  int64   `gorm:"column:start_time;not null;default:0"`
	EndTime    int64   `gorm:"column:end_time;not null;default:0"`
	DurationMS int64   `gorm:"column:duration_ms;not null;default:0"`
	Output     *string `gorm:"column:output;type:text"`
	Error      string  `gorm:"column:error;type:text;not null"`
}

func (nodeRow) TableName() string { return "workflow_node_runs" }

func toRunRow(h *workflow.ExecutionHistory) (*runRow, error) {
	unreached := h.Unreached
	if unreached == nil {
		unreached = []string{}
	}
	u, err := json.Marshal(unreached)
	if err != nil {
		return nil, fmt.Errorf("encode unreached: %w", err)
	}

	row := &runRow{
		RunID:        h.RunID,
		WorkflowName: h.WorkflowName,
		Status:       string(h.Status),
		FailedNode:   h.FailedNode,
		Error:        h.Error,
		Unreached:    string(u),
		StartedAt:    h.StartTime.UTC(),
		DurationMS:   h.Duration.Milliseconds(),
	}
	if !h.EndTime.IsZero() {
		end := h.EndTime.UTC()
		row.EndedAt = &end
	}
	if h.Graph != nil {
		g, err := json.Marshal(h.Graph)
		if err != nil {
			return nil, fmt.Errorf("encode graph: %w", err)
		}
		s := string(g)
		row.Graph = &s
	}

	row.Nodes = make([]nodeRow, 0, len(h.Nodes))
	for i, n := range h.Nodes {
		if n == nil {
			continue
		}
		nr := nodeRow{
			RunID:      h.RunID,
			Seq:        i,
			NodeID:     n.NodeID,
			Action:     n.Action,
			Status:     string(n.Status),
			StartTime:  epochMillis(n.StartTime),
			EndTime:    epochMillis(n.EndTime),
			DurationMS: n.Duration.Milliseconds(),
			Error:      n.Error,
		}
		if n.Output != nil {
			out, err := json.Marshal(n.Output)
			if err != nil {
				return nil, fmt.Errorf("encode output of node %s: %w", n.NodeID, err)
			}
			s := string(out)
			nr.Output = &s
		}
		row.Nodes = append(row.Nodes, nr)
	}
	return row, nil
}

func (r *runRow) toHistory() (*workflow.ExecutionHistory, error) {
	h := &workflow.ExecutionHistory{
		RunID:        r.RunID,
		WorkflowName: r.WorkflowName,
		Status:       workflow.HistoryStatus(r.Status),
		StartTime:    r.StartedAt.UTC(),
		Duration:     time.Duration(r.DurationMS) * time.Millisecond,
		FailedNode:   r.FailedNode,
		Error:        r.Error,
		Nodes:        make([]*workflow.NodeRecord, 0, len(r.Nodes)),
	}
	if r.EndedAt != nil {
		h.EndTime = r.EndedAt.UTC()
	}
	if r.Unreached != "" {
		if err := json.Unmarshal([]byte(r.Unreached), &h.Unreached); err != nil {
			return nil, fmt.Errorf("decode unreached of run %s: %w", r.RunID, err)
		}
		if len(h.Unreached) == 0 {
			h.Unreached = nil
		}
	}
	if r.Graph != nil {
		var g workflow.Graph
		if err := json.Unmarshal([]byte(*r.Graph), &g); err != nil {
			return nil, fmt.Errorf("decode graph of run %s: %w", r.RunID, err)
		}
		h.Graph = &g
	}

	for _, n := range r.Nodes {
		rec := &workflow.NodeRecord{
			NodeID:    n.NodeID,
			Action:    n.Action,
			Status:    workflow.LogStatus(n.Status),
			StartTime: fromMillis(n.StartTime),
			EndTime:   fromMillis(n.EndTime),
			Duration:  time.Duration(n.DurationMS) * time.Millisecond,
			Error:     n.Error,
		}
		if n.Output != nil {
			if err := json.Unmarshal([]byte(*n.Output), &rec.Output); err != nil {
				return nil, fmt.Errorf("decode output of node %s: %w", n.NodeID, err)
			}
		}
		h.Nodes = append(h.Nodes, rec)
	}
	return h, nil
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
