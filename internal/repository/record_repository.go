package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordTable 业务表结构
// 列名由调用方校验,这里只做引用和绑定
type RecordTable struct {
	Name          string
	IDColumn      string
	NumberColumn  string
	StatusColumn  string
	CreatorColumn string
}

// BusinessRecord 业务记录中审批相关的字段
type BusinessRecord struct {
	ID             string
	BusinessNumber string
	Status         string
	CreatedBy      string
}

// RecordRepository 业务记录仓储接口
type RecordRepository interface {
	// FindForUpdate 读取业务记录,支持的数据库上加行锁
	// 记录不存在时返回 gorm.ErrRecordNotFound
	FindForUpdate(ctx context.Context, table RecordTable, id interface{}) (*BusinessRecord, error)
	// CompareAndSwapStatus 仅当状态仍为 expected 时更新,返回是否更新成功
	CompareAndSwapStatus(ctx context.Context, table RecordTable, id interface{}, expected string, updates map[string]interface{}) (bool, error)
}

// recordRepository 业务记录仓储实现
type recordRepository struct {
	db *gorm.DB
}

// NewRecordRepository 创建业务记录仓储
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

// recordRow 业务记录查询结果
type recordRow struct {
	RecordID      sql.NullString
	RecordNo      sql.NullString
	RecordStatus  sql.NullString
	RecordCreator sql.NullString
}

// FindForUpdate 读取业务记录
func (r *recordRepository) FindForUpdate(ctx context.Context, table RecordTable, id interface{}) (*BusinessRecord, error) {
	query := r.db.WithContext(ctx).
		Table(table.Name).
		Select("? AS record_id, ? AS record_no, ? AS record_status, ? AS record_creator",
			clause.Column{Name: table.IDColumn},
			clause.Column{Name: table.NumberColumn},
			clause.Column{Name: table.StatusColumn},
			clause.Column{Name: table.CreatorColumn},
		).
		Where("? = ?", clause.Column{Name: table.IDColumn}, id)

	if supportsRowLock(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var rows []recordRow
	if err := query.Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	row := rows[0]
	return &BusinessRecord{
		ID:             row.RecordID.String,
		BusinessNumber: row.RecordNo.String,
		Status:         row.RecordStatus.String,
		CreatedBy:      row.RecordCreator.String,
	}, nil
}

// CompareAndSwapStatus 按期望状态更新业务记录
func (r *recordRepository) CompareAndSwapStatus(ctx context.Context, table RecordTable, id interface{}, expected string, updates map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Table(table.Name).
		Where("? = ? AND ? = ?",
			clause.Column{Name: table.IDColumn}, id,
			clause.Column{Name: table.StatusColumn}, expected,
		).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// supportsRowLock SQLite 不支持 SELECT ... FOR UPDATE
func supportsRowLock(db *gorm.DB) bool {
	switch db.Dialector.Name() {
	case "sqlite", "sqlite3":
		return false
	default:
		return true
	}
}
