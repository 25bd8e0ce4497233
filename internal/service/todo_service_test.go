package service_test

import (
	"context"
	"testing"

	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/service"
	"github.com/mautops/qms-workflow/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTodoService(t *testing.T) (service.TodoService, repository.TodoRepository) {
	db := testutil.OpenSQLite(t)
	repo := repository.NewTodoRepository(db)
	return service.NewTodoService(repo), repo
}

func createRequest(businessID string) *service.CreateTodoRequest {
	return &service.CreateTodoRequest{
		TodoType:       "complaint",
		BusinessID:     businessID,
		BusinessNo:     "CR-" + businessID,
		Title:          "客户投诉 - CR-" + businessID,
		CreatedBy:      1,
		CreatedByName:  "李四",
		AssignedTo:     2,
		AssignedToName: "张三",
	}
}

// TestTodoService_Create 创建待处理的待办
func TestTodoService_Create(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, createRequest("1"))
	require.NoError(t, err)
	assert.NotZero(t, todo.ID)
	assert.Equal(t, model.TodoStatusPending, todo.Status)
	assert.Equal(t, model.TodoPriorityMedium, todo.Priority)
	assert.False(t, todo.IsRead)

	_, err = svc.Create(ctx, createRequest("1"))
	assert.ErrorIs(t, err, service.ErrPendingTodoExists)

	other := createRequest("2")
	other.TodoType = "rework"
	other.BusinessID = "1"
	_, err = svc.Create(ctx, other)
	assert.NoError(t, err)
}

// TestTodoService_CreateValidation 缺少必填字段
func TestTodoService_CreateValidation(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	noAssignee := createRequest("1")
	noAssignee.AssignedTo = 0
	_, err := svc.Create(ctx, noAssignee)
	assert.Error(t, err)

	badPriority := createRequest("1")
	badPriority.Priority = "urgent"
	_, err = svc.Create(ctx, badPriority)
	assert.Error(t, err)
}

// TestTodoService_CompleteIsIdempotent 重复完成不报错也不修改
func TestTodoService_CompleteIsIdempotent(t *testing.T) {
	svc, repo := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, createRequest("1"))
	require.NoError(t, err)

	changed, err := svc.Complete(ctx, "complaint", "1", "approved")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.Complete(ctx, "complaint", "1", "rejected: late")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = svc.Cancel(ctx, "complaint", "1")
	require.NoError(t, err)
	assert.False(t, changed)

	saved, err := repo.FindByID(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TodoStatusCompleted, saved.Status)
	assert.Equal(t, "approved", saved.Result)
	assert.NotNil(t, saved.CompletedAt)
}

// TestTodoService_CancelIsIdempotent 重复取消不报错
func TestTodoService_CancelIsIdempotent(t *testing.T) {
	svc, repo := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, createRequest("1"))
	require.NoError(t, err)

	changed, err := svc.Cancel(ctx, "complaint", "1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = svc.Cancel(ctx, "complaint", "1")
	require.NoError(t, err)
	assert.False(t, changed)

	saved, err := repo.FindByID(ctx, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TodoStatusCancelled, saved.Status)
	assert.Nil(t, saved.CompletedAt)

	// 取消后可以重新创建
	_, err = svc.Create(ctx, createRequest("1"))
	assert.NoError(t, err)
}

// TestTodoService_MarkRead 只有被分配人可以标记已读
func TestTodoService_MarkRead(t *testing.T) {
	svc, repo := newTodoService(t)
	ctx := context.Background()

	todo, err := svc.Create(ctx, createRequest("1"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, 1, todo.ID), service.ErrTodoNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, 2, 999), service.ErrTodoNotFound)
	require.NoError(t, svc.MarkRead(ctx, 2, todo.ID))

	saved, err := repo.FindByID(ctx, todo.ID)
	require.NoError(t, err)
	assert.True(t, saved.IsRead)
}

// TestTodoService_BatchMarkRead 批量标记已读
func TestTodoService_BatchMarkRead(t *testing.T) {
	svc, _ := newTodoService(t)
	ctx := context.Background()

	var ids []uint
	for _, id := range []string{"1", "2", "3"} {
		todo, err := svc.Create(ctx, createRequest(id))
		require.NoError(t, err)
		ids = append(ids, todo.ID)
	}

	affected, err := svc.BatchMarkRead(ctx, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	affected, err = svc.BatchMarkRead(ctx, 2, ids[:2])
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	counts, err := svc.CountForUser(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(1), counts.Unread)

	todos, total, err := svc.ListForUser(ctx, &repository.TodoFilter{UserID: 2, IsRead: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, ids[2], todos[0].ID)

	byType, err := svc.CountByType(ctx, 2)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, int64(3), byType[0].Pending)
}

func boolPtr(v bool) *bool {
	return &v
}
