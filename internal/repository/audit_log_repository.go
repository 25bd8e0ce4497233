package repository

import (
	"context"

	"github.com/mautops/qms-workflow/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Create(ctx context.Context, log *model.AuditLogModel) error
	FindByBusiness(ctx context.Context, businessType string, businessID string) ([]*model.AuditLogModel, error)
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Create 追加审计日志,只插入不覆盖
func (r *auditLogRepository) Create(ctx context.Context, log *model.AuditLogModel) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByBusiness 查询业务记录的审计历史,最新的在前
func (r *auditLogRepository) FindByBusiness(ctx context.Context, businessType string, businessID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.WithContext(ctx).
		Where("business_type = ? AND business_id = ?", businessType, businessID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&logs).Error
	return logs, err
}

