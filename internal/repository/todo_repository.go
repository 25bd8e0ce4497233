package repository

import (
	"context"
	"time"

	"github.com/mautops/qms-workflow/internal/model"
	"gorm.io/gorm"
)

// TodoRepository 待办仓储接口
type TodoRepository interface {
	Create(ctx context.Context, todo *model.TodoItemModel) error
	FindByID(ctx context.Context, id uint) (*model.TodoItemModel, error)
	FindPending(ctx context.Context, todoType string, businessID string) (*model.TodoItemModel, error)
	UpdatePending(ctx context.Context, todoType string, businessID string, updates map[string]interface{}) (int64, error)
	List(ctx context.Context, filter *TodoFilter) ([]*model.TodoItemModel, int64, error)
	CountForUser(ctx context.Context, userID uint) (*TodoCounts, error)
	CountByType(ctx context.Context, userID uint) ([]*TodoTypeCount, error)
	CountPendingByType(ctx context.Context) ([]*TodoTypeCount, error)
	MarkRead(ctx context.Context, userID uint, ids []uint, readAt time.Time) (int64, error)
}

// TodoFilter 待办查询过滤器
type TodoFilter struct {
	UserID   uint
	Status   string
	TodoType string
	IsRead   *bool
	Page     int
	PageSize int
}

// TodoCounts 待办数量统计
type TodoCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Completed int64 `json:"completed"`
	Unread    int64 `json:"unread"`
}

// TodoTypeCount 按类型统计
type TodoTypeCount struct {
	TodoType string `json:"todo_type"`
	Total    int64  `json:"total"`
	Pending  int64  `json:"pending"`
}

// todoRepository 待办仓储实现
type todoRepository struct {
	db *gorm.DB
}

// NewTodoRepository 创建待办仓储
func NewTodoRepository(db *gorm.DB) TodoRepository {
	return &todoRepository{db: db}
}

// Create 创建待办
func (r *todoRepository) Create(ctx context.Context, todo *model.TodoItemModel) error {
	return r.db.WithContext(ctx).Create(todo).Error
}

// FindByID 根据 ID 查找待办
func (r *todoRepository) FindByID(ctx context.Context, id uint) (*model.TodoItemModel, error) {
	var todo model.TodoItemModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&todo).Error; err != nil {
		return nil, err
	}
	return &todo, nil
}

// FindPending 查找业务记录当前的待处理待办
func (r *todoRepository) FindPending(ctx context.Context, todoType string, businessID string) (*model.TodoItemModel, error) {
	var todo model.TodoItemModel
	err := r.db.WithContext(ctx).
		Where("todo_type = ? AND business_id = ? AND status = ?", todoType, businessID, model.TodoStatusPending).
		First(&todo).Error
	if err != nil {
		return nil, err
	}
	return &todo, nil
}

// UpdatePending 更新待处理的待办,返回受影响行数
// 只匹配 pending 状态,已结束的待办不会被再次修改
func (r *todoRepository) UpdatePending(ctx context.Context, todoType string, businessID string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.TodoItemModel{}).
		Where("todo_type = ? AND business_id = ? AND status = ?", todoType, businessID, model.TodoStatusPending).
		Updates(updates)
	return result.RowsAffected, result.Error
}

// List 查询与用户相关的待办(分配给我或我创建的)
func (r *todoRepository) List(ctx context.Context, filter *TodoFilter) ([]*model.TodoItemModel, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.TodoItemModel{}).
		Where("(assigned_to = ? OR created_by = ?)", filter.UserID, filter.UserID)

	if filter.Status != "" {
		if filter.Status == model.TodoStatusCompleted {
			query = query.Where("status IN ?", model.CompletedStatusAliases)
		} else {
			query = query.Where("status = ?", filter.Status)
		}
	}
	if filter.TodoType != "" {
		query = query.Where("todo_type = ?", filter.TodoType)
	}
	if filter.IsRead != nil {
		query = query.Where("is_read = ?", *filter.IsRead)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var todos []*model.TodoItemModel
	err := query.
		Order("CASE WHEN status = 'pending' THEN 0 ELSE 1 END").
		Order("CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END").
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&todos).Error
	if err != nil {
		return nil, 0, err
	}
	return todos, total, nil
}

// CountForUser 统计与用户相关的待办数量
func (r *todoRepository) CountForUser(ctx context.Context, userID uint) (*TodoCounts, error) {
	var counts TodoCounts
	err := r.db.WithContext(ctx).Model(&model.TodoItemModel{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending, "+
				"COALESCE(SUM(CASE WHEN status IN ? THEN 1 ELSE 0 END), 0) AS completed, "+
				"COALESCE(SUM(CASE WHEN status = ? AND is_read = ? THEN 1 ELSE 0 END), 0) AS unread",
			model.TodoStatusPending, model.CompletedStatusAliases, model.TodoStatusPending, false,
		).
		Where("assigned_to = ? OR created_by = ?", userID, userID).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return &counts, nil
}

// CountByType 按类型统计分配给用户的待办
func (r *todoRepository) CountByType(ctx context.Context, userID uint) ([]*TodoTypeCount, error) {
	var counts []*TodoTypeCount
	err := r.db.WithContext(ctx).Model(&model.TodoItemModel{}).
		Select("todo_type, COUNT(*) AS total, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS pending", model.TodoStatusPending).
		Where("assigned_to = ?", userID).
		Group("todo_type").
		Order("todo_type").
		Scan(&counts).Error
	return counts, err
}

// CountPendingByType 统计全部待处理待办(按类型)
func (r *todoRepository) CountPendingByType(ctx context.Context) ([]*TodoTypeCount, error) {
	var counts []*TodoTypeCount
	err := r.db.WithContext(ctx).Model(&model.TodoItemModel{}).
		Select("todo_type, COUNT(*) AS total, COUNT(*) AS pending").
		Where("status = ?", model.TodoStatusPending).
		Group("todo_type").
		Scan(&counts).Error
	return counts, err
}

// MarkRead 将分配给用户的待办标记为已读
func (r *todoRepository) MarkRead(ctx context.Context, userID uint, ids []uint, readAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.TodoItemModel{}).
		Where("id IN ? AND assigned_to = ?", ids, userID).
		Updates(map[string]interface{}{
			"is_read":    true,
			"read_at":    readAt,
			"updated_at": readAt,
		})
	return result.RowsAffected, result.Error
}
