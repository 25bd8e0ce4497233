package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
)

// contextKey 请求上下文键
type contextKey string

// RequestIDKey 请求 ID 在 context 中的键
const RequestIDKey contextKey = "request_id"

// WithRequestID 将请求 ID 写入 context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID 从 context 获取请求 ID
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// AuditLogService 审计日志服务
type AuditLogService interface {
	Append(ctx context.Context, entry *model.AuditLogModel, details interface{}) error
	History(ctx context.Context, businessType string, businessID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// Append 追加一条流转记录
func (s *auditLogService) Append(ctx context.Context, entry *model.AuditLogModel, details interface{}) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	if details != nil {
		detailsJSON, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		entry.Details = string(detailsJSON)
	}
	if entry.RequestID == "" {
		entry.RequestID = GetRequestID(ctx)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	return s.auditRepo.Create(ctx, entry)
}

// History 查询业务记录的流转历史,最新的在前
func (s *auditLogService) History(ctx context.Context, businessType string, businessID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByBusiness(ctx, businessType, businessID)
}
