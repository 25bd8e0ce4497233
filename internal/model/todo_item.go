package model

import (
	"errors"
	"time"
)

// 待办状态
const (
	TodoStatusPending   = "pending"
	TodoStatusCompleted = "completed"
	TodoStatusCancelled = "cancelled"
)

// 待办优先级
const (
	TodoPriorityHigh   = "high"
	TodoPriorityMedium = "medium"
	TodoPriorityLow    = "low"
)

// CompletedStatusAliases 历史数据中表示“已完成”的状态写法
var CompletedStatusAliases = []string{TodoStatusCompleted, "approved", "passed", "已审核", "已通过", "已完成"}

// TodoItemModel 待办事项数据模型
// (todo_type, business_id) 在 status = pending 的记录中唯一
type TodoItemModel struct {
	ID             uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	TodoType       string     `gorm:"type:varchar(64);not null" json:"todo_type"`
	BusinessID     string     `gorm:"type:varchar(64);not null" json:"business_id"`
	BusinessNo     string     `gorm:"type:varchar(128)" json:"business_no"`
	Title          string     `gorm:"type:varchar(255);not null" json:"title"`
	Content        string     `gorm:"type:text" json:"content"`
	Priority       string     `gorm:"type:varchar(16);not null" json:"priority"`
	Status         string     `gorm:"type:varchar(16);not null" json:"status"`
	CreatedBy      uint       `gorm:"not null" json:"created_by"`
	CreatedByName  string     `gorm:"type:varchar(64)" json:"created_by_name"`
	AssignedTo     uint       `gorm:"not null" json:"assigned_to"`
	AssignedToName string     `gorm:"type:varchar(64)" json:"assigned_to_name"`
	AssignedDeptID *uint      `json:"assigned_dept_id,omitempty"`
	Result         string     `gorm:"type:text" json:"result"`
	IsRead         bool       `gorm:"not null" json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	ExpireAt       *time.Time `json:"expire_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null" json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (TodoItemModel) TableName() string {
	return "todo_items"
}

// Validate 验证待办模型
func (t *TodoItemModel) Validate() error {
	if t.TodoType == "" {
		return errors.New("todo type is required")
	}
	if t.BusinessID == "" {
		return errors.New("business ID is required")
	}
	if t.Title == "" {
		return errors.New("title is required")
	}
	if t.AssignedTo == 0 {
		return errors.New("assignee is required")
	}
	switch t.Priority {
	case TodoPriorityHigh, TodoPriorityMedium, TodoPriorityLow:
	default:
		return errors.New("invalid priority")
	}
	return nil
}
