package model

import (
	"errors"
	"time"
)

// 审计动作
const (
	AuditActionSubmit  = "submit"
	AuditActionApprove = "approve"
	AuditActionReject  = "reject"
	AuditActionRevoke  = "revoke"
)

// AuditLogModel 审计日志数据模型
// 只追加不修改,按 (created_at, id) 全序
type AuditLogModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BusinessType string    `gorm:"type:varchar(64);not null" json:"business_type"`
	BusinessID   string    `gorm:"type:varchar(64);not null" json:"business_id"`
	BusinessNo   string    `gorm:"type:varchar(128)" json:"business_no"`
	Action       string    `gorm:"type:varchar(16);not null" json:"action"` // submit/approve/reject/revoke
	FromStatus   string    `gorm:"type:varchar(32)" json:"from_status"`
	ToStatus     string    `gorm:"type:varchar(32);not null" json:"to_status"`
	OperatorID   uint      `json:"operator_id"`
	OperatorName string    `gorm:"type:varchar(64)" json:"operator_name"`
	Remark       string    `gorm:"type:text" json:"remark"`
	RequestID    string    `gorm:"type:varchar(64)" json:"request_id,omitempty"`
	Details      string    `gorm:"type:text" json:"details,omitempty"` // JSON 格式的附加信息
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	if alm.BusinessType == "" {
		return errors.New("business type is required")
	}
	if alm.BusinessID == "" {
		return errors.New("business ID is required")
	}
	switch alm.Action {
	case AuditActionSubmit, AuditActionApprove, AuditActionReject, AuditActionRevoke:
	case "":
		return errors.New("action is required")
	default:
		return errors.New("invalid action")
	}
	if alm.ToStatus == "" {
		return errors.New("to status is required")
	}
	return nil
}
