package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedTodo 创建待办
func seedTodo(t *testing.T, repo repository.TodoRepository, todo model.TodoItemModel) *model.TodoItemModel {
	if todo.Priority == "" {
		todo.Priority = model.TodoPriorityMedium
	}
	if todo.Status == "" {
		todo.Status = model.TodoStatusPending
	}
	if todo.Title == "" {
		todo.Title = todo.TodoType + " " + todo.BusinessID
	}
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = time.Now()
	}
	require.NoError(t, repo.Create(context.Background(), &todo))
	return &todo
}

// TestTodoRepository_FindPending 只返回待处理的待办
func TestTodoRepository_FindPending(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewTodoRepository(db)
	ctx := context.Background()

	seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "1", AssignedTo: 2, Status: model.TodoStatusCompleted})
	pending := seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "1", AssignedTo: 2})

	found, err := repo.FindPending(ctx, "complaint", "1")
	require.NoError(t, err)
	assert.Equal(t, pending.ID, found.ID)

	_, err = repo.FindPending(ctx, "rework", "1")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTodoRepository_UpdatePending 已结束的待办不再更新
func TestTodoRepository_UpdatePending(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewTodoRepository(db)
	ctx := context.Background()

	todo := seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "9", AssignedTo: 2})

	affected, err := repo.UpdatePending(ctx, "rework", "9", map[string]interface{}{"status": model.TodoStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = repo.UpdatePending(ctx, "rework", "9", map[string]interface{}{"status": model.TodoStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	saved, err := repo.FindByID(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TodoStatusCancelled, saved.Status)
}

// TestTodoRepository_List 待处理优先,再按优先级和创建时间排序
func TestTodoRepository_List(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewTodoRepository(db)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	lowOld := seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "1", AssignedTo: 5, Priority: model.TodoPriorityLow, CreatedAt: base})
	highOld := seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "2", AssignedTo: 5, Priority: model.TodoPriorityHigh, CreatedAt: base})
	highNew := seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "3", AssignedTo: 5, Priority: model.TodoPriorityHigh, CreatedAt: base.Add(time.Minute)})
	done := seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "4", AssignedTo: 5, Priority: model.TodoPriorityHigh, Status: "已完成", CreatedAt: base.Add(2 * time.Minute)})
	mine := seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "5", AssignedTo: 6, CreatedBy: 5, CreatedAt: base})
	seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "6", AssignedTo: 7, CreatedBy: 8})

	todos, total, err := repo.List(ctx, &repository.TodoFilter{UserID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	ids := make([]uint, 0, len(todos))
	for _, todo := range todos {
		ids = append(ids, todo.ID)
	}
	assert.Equal(t, []uint{highNew.ID, highOld.ID, mine.ID, lowOld.ID, done.ID}, ids)

	todos, total, err = repo.List(ctx, &repository.TodoFilter{UserID: 5, Status: model.TodoStatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, done.ID, todos[0].ID)

	_, total, err = repo.List(ctx, &repository.TodoFilter{UserID: 5, TodoType: "rework", Status: model.TodoStatusPending})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	todos, total, err = repo.List(ctx, &repository.TodoFilter{UserID: 5, Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, todos, 2)
	assert.Equal(t, mine.ID, todos[0].ID)
}

// TestTodoRepository_Counts 统计总数、待处理、已完成和未读
func TestTodoRepository_Counts(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewTodoRepository(db)
	ctx := context.Background()

	seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "1", AssignedTo: 5})
	read := seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "2", AssignedTo: 5})
	seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "3", AssignedTo: 5, Status: "approved"})
	seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "4", AssignedTo: 5, Status: model.TodoStatusCancelled})
	seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "5", AssignedTo: 9, CreatedBy: 5})
	seedTodo(t, repo, model.TodoItemModel{TodoType: "rework", BusinessID: "6", AssignedTo: 9})

	affected, err := repo.MarkRead(ctx, 5, []uint{read.ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	counts, err := repo.CountForUser(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counts.Total)
	assert.Equal(t, int64(3), counts.Pending)
	assert.Equal(t, int64(1), counts.Completed)
	assert.Equal(t, int64(2), counts.Unread)

	byType, err := repo.CountByType(ctx, 5)
	require.NoError(t, err)
	require.Len(t, byType, 2)
	assert.Equal(t, "complaint", byType[0].TodoType)
	assert.Equal(t, int64(2), byType[0].Total)
	assert.Equal(t, int64(2), byType[0].Pending)
	assert.Equal(t, "rework", byType[1].TodoType)
	assert.Equal(t, int64(2), byType[1].Total)
	assert.Equal(t, int64(0), byType[1].Pending)

	pending, err := repo.CountPendingByType(ctx)
	require.NoError(t, err)
	got := make(map[string]int64)
	for _, c := range pending {
		got[c.TodoType] = c.Pending
	}
	assert.Equal(t, map[string]int64{"complaint": 2, "rework": 2}, got)

	empty, err := repo.CountForUser(ctx, 404)
	require.NoError(t, err)
	assert.Equal(t, int64(0), empty.Total)
	assert.Equal(t, int64(0), empty.Unread)
}

// TestTodoRepository_MarkReadAssigneeOnly 只有被分配人可以标记已读
func TestTodoRepository_MarkReadAssigneeOnly(t *testing.T) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewTodoRepository(db)
	ctx := context.Background()

	todo := seedTodo(t, repo, model.TodoItemModel{TodoType: "complaint", BusinessID: "1", AssignedTo: 5, CreatedBy: 6})

	affected, err := repo.MarkRead(ctx, 6, []uint{todo.ID}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	affected, err = repo.MarkRead(ctx, 5, []uint{todo.ID, 999}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	saved, err := repo.FindByID(ctx, todo.ID)
	require.NoError(t, err)
	assert.True(t, saved.IsRead)
	assert.NotNil(t, saved.ReadAt)
}
