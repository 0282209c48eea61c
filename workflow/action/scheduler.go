package action

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SchedulerParams are the params of a scheduler node.
type SchedulerParams struct {
	Cron           string `json:"cron"`
	CronExpression string `json:"cron_expression"`
	Description    string `json:"description"`
}

// Schedule returns the cron expression, preferring "cron".
func (p SchedulerParams) Schedule() string {
	if p.Cron != "" {
		return p.Cron
	}
	return p.CronExpression
}

// Scheduler marks the trigger point of a workflow. It never fails.
type Scheduler struct {
	now    func() time.Time
	logger *zap.Logger
}

func NewScheduler(now func() time.Time, logger *zap.Logger) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{now: now, logger: logger}
}

func (s *Scheduler) Kind() Kind { return KindScheduler }

func (s *Scheduler) Handle(ctx context.Context, params map[string]any, _ any) (any, error) {
	var p SchedulerParams
	if err := DecodeParams(params, &p); err != nil {
		s.logger.Warn("scheduler params ignored", zap.Error(err))
		p = SchedulerParams{}
	}
	return s.Run(ctx, p), nil
}

func (s *Scheduler) Run(_ context.Context, p SchedulerParams) map[string]any {
	out := map[string]any{
		"triggered_at": s.now().UTC().Format("2006-01-02T15:04:05.000Z"),
		"schedule":     nil,
	}
	if schedule := p.Schedule(); schedule != "" {
		out["schedule"] = schedule
	}
	if p.Description != "" {
		out["description"] = p.Description
	}
	return out
}
