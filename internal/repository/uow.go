package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos 同一事务内的仓储集合
type Repos struct {
	Records      RecordRepository
	Todos        TodoRepository
	AuditLogs    AuditLogRepository
	Organization OrganizationRepository
}

// UnitOfWork 事务边界
// fn 返回错误时整个事务回滚
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

// gormUnitOfWork 基于 GORM 事务的实现
type gormUnitOfWork struct {
	db *gorm.DB
}

// NewUnitOfWork 创建事务管理器
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{db: db}
}

// WithinTx 在事务中执行 fn
func (u *gormUnitOfWork) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

// NewRepos 基于给定连接创建仓储集合
func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Records:      NewRecordRepository(db),
		Todos:        NewTodoRepository(db),
		AuditLogs:    NewAuditLogRepository(db),
		Organization: NewOrganizationRepository(db),
	}
}
