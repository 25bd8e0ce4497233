package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/qms-workflow/internal/config"
	"github.com/mautops/qms-workflow/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 按驱动构建 DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	switch cfg.Driver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
	case DriverSQLite:
		return cfg.DBName
	default:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
	}
}

// GetPoolConfig 获取连接池配置,未配置的项使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 3600 // 1 小时
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = 600 // 10 分钟
	}

	// 内存库只在单个连接内可见
	if cfg.Driver == DriverSQLite && strings.Contains(cfg.DBName, ":memory:") {
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
		pool.ConnMaxLifetime = 0
		pool.ConnMaxIdleTime = 0
	}
	return pool
}

// dialector 按驱动选择 GORM 方言
func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	dsn := BuildDSN(cfg)
	switch cfg.Driver {
	case DriverPostgres, "":
		return postgres.Open(dsn), nil
	case DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Connect 连接数据库
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := GetPoolConfig(cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// Migrate 执行数据库迁移
// 只迁移待办、审计日志和组织架构表,业务表由各业务模块维护
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.TodoItemModel{},
		&model.AuditLogModel{},
		&model.UserModel{},
		&model.PositionModel{},
		&model.RoleModel{},
		&model.UserRoleModel{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// index 索引定义
type index struct {
	name    string
	table   string
	columns string
	unique  bool
	where   string // 部分索引条件,MySQL 不支持
}

var indexes = []index{
	// todo_items 表索引
	{name: "idx_todo_items_assigned_status", table: "todo_items", columns: "assigned_to, status"},
	{name: "idx_todo_items_created_by", table: "todo_items", columns: "created_by"},
	{name: "idx_todo_items_business", table: "todo_items", columns: "todo_type, business_id"},
	{name: "uidx_todo_items_pending", table: "todo_items", columns: "todo_type, business_id", unique: true, where: "status = 'pending'"},

	// audit_logs 表索引
	{name: "idx_audit_logs_business", table: "audit_logs", columns: "business_type, business_id, created_at"},
	{name: "idx_audit_logs_operator", table: "audit_logs", columns: "operator_id"},

	// 组织架构索引
	{name: "idx_users_department", table: "users", columns: "department_id"},
	{name: "idx_users_position", table: "users", columns: "position_id"},
	{name: "idx_positions_parent", table: "positions", columns: "parent_id"},
}

// CreateIndexes 创建数据库索引
// 同一业务记录只能有一条待处理待办,PostgreSQL 和 SQLite 用部分唯一索引保证;
// MySQL 不支持部分索引,依靠行锁和状态比较更新保证
func CreateIndexes(db *gorm.DB) error {
	name := db.Dialector.Name()

	for _, idx := range indexes {
		if idx.where != "" && name == DriverMySQL {
			continue
		}
		if err := createIndex(db, name, idx); err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}
	return nil
}

func createIndex(db *gorm.DB, dialect string, idx index) error {
	kind := "INDEX"
	if idx.unique {
		kind = "UNIQUE INDEX"
	}

	// MySQL 不支持 CREATE INDEX IF NOT EXISTS
	if dialect == DriverMySQL {
		if db.Migrator().HasIndex(idx.table, idx.name) {
			return nil
		}
		return db.Exec(fmt.Sprintf("CREATE %s %s ON %s(%s)", kind, idx.name, idx.table, idx.columns)).Error
	}

	stmt := fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s(%s)", kind, idx.name, idx.table, idx.columns)
	if idx.where != "" {
		stmt += " WHERE " + idx.where
	}
	return db.Exec(stmt).Error
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}
