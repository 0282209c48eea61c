package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 PoolManager 测试
// =============================================================================

func setupTestDB(t *testing.T) (sqlmock.Sqlmock, *PoolManager) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	manager, err := NewPoolManager(gormDB, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5}, zap.NewNop())
	require.NoError(t, err)
	return mock, manager
}

func TestNewPoolManager_NilDB(t *testing.T) {
	_, err := NewPoolManager(nil, DefaultPoolConfig(), zap.NewNop())
	assert.Error(t, err)
}

func TestPoolManager_Ping(t *testing.T) {
	mock, manager := setupTestDB(t)

	mock.ExpectPing()
	assert.NoError(t, manager.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)
	assert.ErrorIs(t, manager.Ping(context.Background()), sql.ErrConnDone)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Stats(t *testing.T) {
	_, manager := setupTestDB(t)

	stats := manager.Stats()
	assert.Equal(t, 10, stats.MaxOpen)
	assert.GreaterOrEqual(t, stats.Idle, 0)
	assert.Equal(t, "postgres", manager.Driver())
}

func TestNewPoolManager_DefaultWriteAttempts(t *testing.T) {
	_, manager := setupTestDB(t)
	assert.Equal(t, defaultWriteAttempts, manager.cfg.WriteAttempts)
}

func TestPoolManager_Write(t *testing.T) {
	mock, manager := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, manager.Write(context.Background(), func(tx *gorm.DB) error { return nil }))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := manager.Write(context.Background(), func(tx *gorm.DB) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Write_RetriesDeadlock(t *testing.T) {
	mock, manager := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := manager.Write(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			return fmt.Errorf("upsert run: %w", &pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Write_GivesUpAfterAttempts(t *testing.T) {
	mock, manager := setupTestDB(t)
	manager.cfg.WriteAttempts = 2

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	attempts := 0
	err := manager.Write(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}
	})
	require.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.ErrorContains(t, err, "after 2 attempts")

	var myErr *mysql.MySQLError
	assert.ErrorAs(t, err, &myErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPoolManager_Write_NoRetryOnConstraint(t *testing.T) {
	mock, manager := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := manager.Write(context.Background(), func(tx *gorm.DB) error {
		attempts++
		// unique_violation
		return &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPoolManager_Close(t *testing.T) {
	mock, manager := setupTestDB(t)

	mock.ExpectClose()
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.ErrorIs(t, manager.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, manager.Write(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
}

// sqliteErr 模拟 sqlite 驱动带结果码的错误
type sqliteErr int

func (e sqliteErr) Error() string { return fmt.Sprintf("sqlite error %d", int(e)) }
func (e sqliteErr) Code() int     { return int(e) }

func TestWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"postgres deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"postgres syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true},
		{"mysql lock wait timeout", &mysql.MySQLError{Number: 1205}, true},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062}, false},
		{"sqlite busy", sqliteErr(5), true},
		{"sqlite busy snapshot", sqliteErr(5 | 2<<8), true},
		{"sqlite locked", sqliteErr(6), true},
		{"sqlite constraint", sqliteErr(19), false},
		{"bad connection", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"plain deadlock text", errors.New("deadlock detected"), false},
		{"pool closed", ErrPoolClosed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, writeConflict(tt.err))
		})
	}
}

func TestOpen_SQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")

	manager, err := Open(DriverSQLite, dsn, DefaultPoolConfig(), zap.NewNop())
	require.NoError(t, err)
	defer manager.Close()

	require.NoError(t, manager.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, manager.Driver())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "dsn", DefaultPoolConfig(), zap.NewNop())
	assert.ErrorContains(t, err, "unsupported database driver")
}
