// Package testutil 测试用的 SQLite 数据库和数据构造方法
package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenSQLite 创建内存数据库并迁移待办、审计日志和组织架构表
// 内存库只在单个连接内可见,所以限制为一个连接
func OpenSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&model.TodoItemModel{},
		&model.AuditLogModel{},
		&model.UserModel{},
		&model.PositionModel{},
		&model.RoleModel{},
		&model.UserRoleModel{},
	)
	require.NoError(t, err)

	return db
}

// CreateBusinessTable 按描述创建业务表,可选列为空时不创建
func CreateBusinessTable(t *testing.T, db *gorm.DB, d *workflow.TableDescriptor) {
	t.Helper()

	idType := "TEXT PRIMARY KEY"
	if d.NumericID {
		idType = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	columns := []string{
		fmt.Sprintf("%q %s", d.IDColumn, idType),
		fmt.Sprintf("%q TEXT", d.NumberColumn),
		fmt.Sprintf("%q TEXT", d.StatusColumn),
		fmt.Sprintf("%q TEXT", d.CreatorColumn),
	}
	optional := []struct {
		name string
		typ  string
	}{
		{d.SubmitTimeColumn, "DATETIME"},
		{d.AuditorColumn, "TEXT"},
		{d.AuditorNameColumn, "TEXT"},
		{d.AuditDateColumn, "DATETIME"},
		{d.AuditRemarkColumn, "TEXT"},
		{d.UpdatedAtColumn, "DATETIME"},
	}
	for _, col := range optional {
		if col.name != "" {
			columns = append(columns, fmt.Sprintf("%q %s", col.name, col.typ))
		}
	}

	ddl := fmt.Sprintf("CREATE TABLE %q (%s)", d.Table, strings.Join(columns, ", "))
	require.NoError(t, db.Exec(ddl).Error)
}

// InsertRecord 插入一条数字主键的业务记录,返回主键
func InsertRecord(t *testing.T, db *gorm.DB, d *workflow.TableDescriptor, number, status, createdBy string) int64 {
	t.Helper()

	insert := fmt.Sprintf("INSERT INTO %q (%q, %q, %q) VALUES (?, ?, ?)",
		d.Table, d.NumberColumn, d.StatusColumn, d.CreatorColumn)
	require.NoError(t, db.Exec(insert, number, status, createdBy).Error)

	var id int64
	require.NoError(t, db.Raw("SELECT last_insert_rowid()").Scan(&id).Error)
	return id
}

// InsertRecordWithID 插入一条指定主键的业务记录
func InsertRecordWithID(t *testing.T, db *gorm.DB, d *workflow.TableDescriptor, id, number, status, createdBy string) {
	t.Helper()

	insert := fmt.Sprintf("INSERT INTO %q (%q, %q, %q, %q) VALUES (?, ?, ?, ?)",
		d.Table, d.IDColumn, d.NumberColumn, d.StatusColumn, d.CreatorColumn)
	require.NoError(t, db.Exec(insert, id, number, status, createdBy).Error)
}

// RecordColumn 读取业务记录的某一列
func RecordColumn(t *testing.T, db *gorm.DB, d *workflow.TableDescriptor, id interface{}, column string) sql.NullString {
	t.Helper()

	var value sql.NullString
	query := fmt.Sprintf("SELECT CAST(%q AS TEXT) FROM %q WHERE %q = ?", column, d.Table, d.IDColumn)
	require.NoError(t, db.Raw(query, id).Row().Scan(&value))
	return value
}

// RecordStatus 读取业务记录的状态
func RecordStatus(t *testing.T, db *gorm.DB, d *workflow.TableDescriptor, id interface{}) string {
	t.Helper()
	return RecordColumn(t, db, d, id, d.StatusColumn).String
}

// CreatePosition 创建岗位
func CreatePosition(t *testing.T, db *gorm.DB, name string, parentID *uint, level *int) uint {
	t.Helper()

	position := &model.PositionModel{Name: name, ParentID: parentID, Level: level}
	require.NoError(t, db.Create(position).Error)
	return position.ID
}

// CreateUser 创建用户
func CreateUser(t *testing.T, db *gorm.DB, username, realName string, departmentID, positionID *uint, active bool) *model.UserModel {
	t.Helper()

	status := 0
	if active {
		status = model.UserStatusActive
	}
	now := time.Now()
	user := &model.UserModel{
		Username:     username,
		RealName:     realName,
		DepartmentID: departmentID,
		PositionID:   positionID,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// GrantRole 为用户授予角色,角色不存在时创建
func GrantRole(t *testing.T, db *gorm.DB, userID uint, roleCode, roleName string) {
	t.Helper()

	role := &model.RoleModel{}
	err := db.Where("role_code = ? AND role_name = ?", roleCode, roleName).First(role).Error
	if err != nil {
		role = &model.RoleModel{RoleCode: roleCode, RoleName: roleName}
		require.NoError(t, db.Create(role).Error)
	}
	require.NoError(t, db.Create(&model.UserRoleModel{UserID: userID, RoleID: role.ID}).Error)
}

// CountRows 统计表中满足条件的行数
func CountRows(t *testing.T, db *gorm.DB, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	q := db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&count).Error)
	return count
}

// UintPtr 返回指针
func UintPtr(v uint) *uint {
	return &v
}

// IntPtr 返回指针
func IntPtr(v int) *int {
	return &v
}
