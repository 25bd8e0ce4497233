package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/qms-workflow/internal/config"
	"github.com/mautops/qms-workflow/internal/database"
	"github.com/mautops/qms-workflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func connectSQLite(t *testing.T) *gorm.DB {
	db, err := database.Connect(config.DatabaseConfig{Driver: database.DriverSQLite, DBName: ":memory:"})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// TestBuildDSN 测试各驱动的 DSN
func TestBuildDSN(t *testing.T) {
	pg := database.BuildDSN(config.DatabaseConfig{
		Driver: database.DriverPostgres, Host: "db", Port: 5432, User: "u", Password: "p", DBName: "qms", SSLMode: "disable",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=qms sslmode=disable", pg)

	my := database.BuildDSN(config.DatabaseConfig{
		Driver: database.DriverMySQL, Host: "db", Port: 3306, User: "u", Password: "p", DBName: "qms",
	})
	assert.Equal(t, "u:p@tcp(db:3306)/qms?charset=utf8mb4&parseTime=True&loc=Local", my)

	lite := database.BuildDSN(config.DatabaseConfig{Driver: database.DriverSQLite, DBName: "/var/lib/qms.db"})
	assert.Equal(t, "/var/lib/qms.db", lite)
}

// TestGetPoolConfig 测试连接池默认值
func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{MaxOpenConns: 50})
	assert.Equal(t, 50, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)

	memory := database.GetPoolConfig(config.DatabaseConfig{Driver: database.DriverSQLite, DBName: ":memory:", MaxOpenConns: 50})
	assert.Equal(t, 1, memory.MaxOpenConns)
}

// TestConnectUnsupportedDriver 不支持的驱动
func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)

	_, err = database.ConnectWithRetry(config.DatabaseConfig{Driver: "oracle"}, 2, time.Millisecond)
	assert.Error(t, err)
}

// TestMigrate 测试迁移和索引
func TestMigrate(t *testing.T) {
	db := connectSQLite(t)
	require.NoError(t, database.Migrate(db))
	// 重复执行不报错
	require.NoError(t, database.Migrate(db))

	for _, table := range []string{"todo_items", "audit_logs", "users", "positions", "roles", "user_roles"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("todo_items", "uidx_todo_items_pending"))
	assert.True(t, db.Migrator().HasIndex("audit_logs", "idx_audit_logs_business"))
}

// TestMigrate_PendingTodoUnique 同一业务记录只能有一条待处理待办
func TestMigrate_PendingTodoUnique(t *testing.T) {
	db := connectSQLite(t)
	require.NoError(t, database.Migrate(db))

	newTodo := func(status string) *model.TodoItemModel {
		return &model.TodoItemModel{
			TodoType:   "complaint",
			BusinessID: "1",
			Title:      "客户投诉 - CR-1",
			Priority:   model.TodoPriorityHigh,
			Status:     status,
			AssignedTo: 2,
			CreatedAt:  time.Now(),
		}
	}

	require.NoError(t, db.Create(newTodo(model.TodoStatusCompleted)).Error)
	require.NoError(t, db.Create(newTodo(model.TodoStatusCompleted)).Error)
	require.NoError(t, db.Create(newTodo(model.TodoStatusPending)).Error)
	assert.Error(t, db.Create(newTodo(model.TodoStatusPending)).Error)
}

// TestCheckHealth 测试健康检查
func TestCheckHealth(t *testing.T) {
	db := connectSQLite(t)
	assert.NoError(t, database.CheckHealth(context.Background(), db))
	assert.Error(t, database.CheckHealth(context.Background(), nil))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	assert.Error(t, database.CheckHealth(context.Background(), db))
}
