package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
	"gorm.io/gorm"
)

var (
	// ErrPendingTodoExists 同一业务记录已有待处理的待办
	ErrPendingTodoExists = errors.New("pending todo already exists")
	// ErrTodoNotFound 待办不存在或不属于当前用户
	ErrTodoNotFound = errors.New("todo not found")
)

// CreateTodoRequest 创建待办请求
type CreateTodoRequest struct {
	TodoType       string
	BusinessID     string
	BusinessNo     string
	Title          string
	Content        string
	Priority       string
	CreatedBy      uint
	CreatedByName  string
	AssignedTo     uint
	AssignedToName string
	AssignedDeptID *uint
	ExpireAt       *time.Time
}

// TodoService 待办队列服务
type TodoService interface {
	Create(ctx context.Context, req *CreateTodoRequest) (*model.TodoItemModel, error)
	Complete(ctx context.Context, todoType string, businessID string, result string) (bool, error)
	Cancel(ctx context.Context, todoType string, businessID string) (bool, error)
	ListForUser(ctx context.Context, filter *repository.TodoFilter) ([]*model.TodoItemModel, int64, error)
	CountForUser(ctx context.Context, userID uint) (*repository.TodoCounts, error)
	CountByType(ctx context.Context, userID uint) ([]*repository.TodoTypeCount, error)
	MarkRead(ctx context.Context, userID uint, id uint) error
	BatchMarkRead(ctx context.Context, userID uint, ids []uint) (int64, error)
}

// todoService 待办队列服务实现
type todoService struct {
	todoRepo repository.TodoRepository
}

// NewTodoService 创建待办队列服务
func NewTodoService(todoRepo repository.TodoRepository) TodoService {
	return &todoService{
		todoRepo: todoRepo,
	}
}

// Create 创建待处理的待办
func (s *todoService) Create(ctx context.Context, req *CreateTodoRequest) (*model.TodoItemModel, error) {
	existing, err := s.todoRepo.FindPending(ctx, req.TodoType, req.BusinessID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check pending todo: %w", err)
	}
	if existing != nil {
		return nil, ErrPendingTodoExists
	}

	priority := req.Priority
	if priority == "" {
		priority = model.TodoPriorityMedium
	}

	now := time.Now()
	todo := &model.TodoItemModel{
		TodoType:       req.TodoType,
		BusinessID:     req.BusinessID,
		BusinessNo:     req.BusinessNo,
		Title:          req.Title,
		Content:        req.Content,
		Priority:       priority,
		Status:         model.TodoStatusPending,
		CreatedBy:      req.CreatedBy,
		CreatedByName:  req.CreatedByName,
		AssignedTo:     req.AssignedTo,
		AssignedToName: req.AssignedToName,
		AssignedDeptID: req.AssignedDeptID,
		ExpireAt:       req.ExpireAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := todo.Validate(); err != nil {
		return nil, err
	}

	if err := s.todoRepo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return todo, nil
}

// Complete 完成待处理的待办
// 没有待处理的待办时不做任何修改,返回 false
func (s *todoService) Complete(ctx context.Context, todoType string, businessID string, result string) (bool, error) {
	now := time.Now()
	affected, err := s.todoRepo.UpdatePending(ctx, todoType, businessID, map[string]interface{}{
		"status":       model.TodoStatusCompleted,
		"result":       result,
		"completed_at": now,
		"updated_at":   now,
	})
	if err != nil {
		return false, fmt.Errorf("failed to complete todo: %w", err)
	}
	return affected > 0, nil
}

// Cancel 取消待处理的待办
// 没有待处理的待办时不做任何修改,返回 false
func (s *todoService) Cancel(ctx context.Context, todoType string, businessID string) (bool, error) {
	affected, err := s.todoRepo.UpdatePending(ctx, todoType, businessID, map[string]interface{}{
		"status":     model.TodoStatusCancelled,
		"updated_at": time.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to cancel todo: %w", err)
	}
	return affected > 0, nil
}

// ListForUser 查询用户的待办列表
func (s *todoService) ListForUser(ctx context.Context, filter *repository.TodoFilter) ([]*model.TodoItemModel, int64, error) {
	return s.todoRepo.List(ctx, filter)
}

// CountForUser 统计用户的待办数量
func (s *todoService) CountForUser(ctx context.Context, userID uint) (*repository.TodoCounts, error) {
	return s.todoRepo.CountForUser(ctx, userID)
}

// CountByType 按类型统计分配给用户的待办
func (s *todoService) CountByType(ctx context.Context, userID uint) ([]*repository.TodoTypeCount, error) {
	return s.todoRepo.CountByType(ctx, userID)
}

// MarkRead 标记单个待办为已读,只有被分配人可以操作
func (s *todoService) MarkRead(ctx context.Context, userID uint, id uint) error {
	affected, err := s.todoRepo.MarkRead(ctx, userID, []uint{id}, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark todo read: %w", err)
	}
	if affected == 0 {
		return ErrTodoNotFound
	}
	return nil
}

// BatchMarkRead 批量标记已读,返回实际更新的数量
func (s *todoService) BatchMarkRead(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	affected, err := s.todoRepo.MarkRead(ctx, userID, ids, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark todos read: %w", err)
	}
	return affected, nil
}
