package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ 运行历史数据库
// =============================================================================

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("database pool is closed")

// defaultWriteAttempts Write 在冲突时的默认尝试次数
const defaultWriteAttempts = 3

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	// WriteAttempts 一次运行历史写入最多尝试几次，<=0 使用默认值
	WriteAttempts int `yaml:"write_attempts" json:"write_attempts"`
}

// DefaultPoolConfig 返回默认连接池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxIdleConns:    5,
		MaxOpenConns:    25,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
		WriteAttempts:   defaultWriteAttempts,
	}
}

// PoolManager 持有运行历史使用的 GORM 连接。探活由 /ready 完成，
// 连接数指标由服务端定时读取 Stats。
type PoolManager struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    PoolConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPoolManager 应用连接池参数并包装 db
func NewPoolManager(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteAttempts <= 0 {
		cfg.WriteAttempts = defaultWriteAttempts
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pm := &PoolManager{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "db_pool"), zap.String("driver", db.Dialector.Name())),
	}
	pm.logger.Info("database opened",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("write_attempts", cfg.WriteAttempts))
	return pm, nil
}

// DB 返回 GORM 实例，供只读查询与迁移使用
func (pm *PoolManager) DB() *gorm.DB { return pm.db }

// Driver 返回方言名：postgres、mysql 或 sqlite
func (pm *PoolManager) Driver() string { return pm.db.Dialector.Name() }

// Ping 用于就绪检查
func (pm *PoolManager) Ping(ctx context.Context) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.closed {
		return ErrPoolClosed
	}
	return pm.sqlDB.PingContext(ctx)
}

// PoolStats 导出到 Prometheus 的连接数
type PoolStats struct {
	MaxOpen int
	Open    int
	InUse   int
	Idle    int
}

// Stats 读取当前连接数
func (pm *PoolManager) Stats() PoolStats {
	s := pm.sqlDB.Stats()
	return PoolStats{MaxOpen: s.MaxOpenConnections, Open: s.OpenConnections, InUse: s.InUse, Idle: s.Idle}
}

// Close 关闭连接，可重复调用
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.closed {
		return nil
	}
	pm.closed = true
	return pm.sqlDB.Close()
}

// =============================================================================
// ✍️ 写入
// =============================================================================

// Write 在事务中执行 fn。并发保存同一运行时可能出现的死锁、序列化冲突
// 或 sqlite 忙锁会按指数退避重试，其余错误立即返回。
func (pm *PoolManager) Write(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 1; attempt <= pm.cfg.WriteAttempts; attempt++ {
		pm.mu.RLock()
		closed := pm.closed
		pm.mu.RUnlock()
		if closed {
			return ErrPoolClosed
		}

		err = pm.db.WithContext(ctx).Transaction(fn)
		if err == nil || !writeConflict(err) {
			return err
		}
		if attempt == pm.cfg.WriteAttempts {
			break
		}

		pm.logger.Warn("history write conflict, retrying", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(1<<(attempt-1)) * 25 * time.Millisecond):
		}
	}
	return fmt.Errorf("history write failed after %d attempts: %w", pm.cfg.WriteAttempts, err)
}

// sqlite 结果码（低 8 位为主码）
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// writeConflict 判断错误是否为值得重试的写冲突
func writeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure / deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// ER_LOCK_DEADLOCK / ER_LOCK_WAIT_TIMEOUT
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		c := coded.Code() & 0xff
		return c == sqliteBusy || c == sqliteLocked
	}
	return errors.Is(err, driver.ErrBadConn)
}
