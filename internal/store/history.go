package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/flowrunner/internal/database"
	"github.com/BaSui01/flowrunner/workflow"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRunNotFound 与 workflow.ErrRunNotFound 相同，便于调用方 errors.Is 判断
var ErrRunNotFound = workflow.ErrRunNotFound

// GormHistoryStore implements workflow.HistoryStore on top of a PoolManager.
type GormHistoryStore struct {
	pool   *database.PoolManager
	logger *zap.Logger
}

var _ workflow.HistoryStore = (*GormHistoryStore)(nil)

// NewGormHistoryStore creates a store backed by pool.
func NewGormHistoryStore(pool *database.PoolManager, logger *zap.Logger) *GormHistoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormHistoryStore{pool: pool, logger: logger.With(zap.String("component", "history_store"))}
}

// AutoMigrate 创建运行历史表（sqlite 或 database.auto_migrate 开启时使用）
func (s *GormHistoryStore) AutoMigrate(ctx context.Context) error {
	if err := s.pool.DB().WithContext(ctx).AutoMigrate(&runRow{}, &nodeRow{}); err != nil {
		return fmt.Errorf("auto migrate run history: %w", err)
	}
	return nil
}

// Save upserts the run and replaces its node records.
func (s *GormHistoryStore) Save(ctx context.Context, h *workflow.ExecutionHistory) error {
	if h == nil || h.RunID == "" {
		return errors.New("history requires a run id")
	}

	row, err := toRunRow(h)
	if err != nil {
		return err
	}
	nodes := row.Nodes
	row.Nodes = nil

	err = s.pool.Write(ctx, func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			UpdateAll: true,
		}).Omit(clause.Associations).Create(row).Error; err != nil {
			return fmt.Errorf("upsert run: %w", err)
		}
		if err := tx.Where("run_id = ?", row.RunID).Delete(&nodeRow{}).Error; err != nil {
			return fmt.Errorf("clear node records: %w", err)
		}
		if len(nodes) == 0 {
			return nil
		}
		if err := tx.Create(&nodes).Error; err != nil {
			return fmt.Errorf("insert node records: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("failed to save run history", zap.String("run_id", h.RunID), zap.Error(err))
		return err
	}

	s.logger.Debug("run history saved",
		zap.String("run_id", h.RunID),
		zap.String("status", string(h.Status)),
		zap.Int("nodes", len(nodes)),
	)
	return nil
}

// Get loads one run with its node records in execution order.
func (s *GormHistoryStore) Get(ctx context.Context, runID string) (*workflow.ExecutionHistory, error) {
	var row runRow
	err := s.pool.DB().WithContext(ctx).
		Preload("Nodes", orderBySeq).
		Where("run_id = ?", runID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return row.toHistory()
}

// List returns the most recent runs first; limit <= 0 means no limit.
func (s *GormHistoryStore) List(ctx context.Context, limit int) ([]*workflow.ExecutionHistory, error) {
	q := s.pool.DB().WithContext(ctx).
		Preload("Nodes", orderBySeq).
		Order("started_at DESC").
		Order("run_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*workflow.ExecutionHistory, 0, len(rows))
	for i := range rows {
		h, err := rows[i].toHistory()
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func orderBySeq(db *gorm.DB) *gorm.DB {
	return db.Order("seq ASC")
}
