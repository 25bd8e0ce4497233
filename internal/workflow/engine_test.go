package workflow_test

import (
	"context"
	"errors"
	"io"
	"strconv"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/service"
	"github.com/mautops/qms-workflow/internal/testutil"
	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingNotifier 记录推送的事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []notified
}

type notified struct {
	userID uint
	event  workflow.Event
}

func (n *recordingNotifier) Notify(userID uint, event workflow.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notified{userID: userID, event: event})
}

func (n *recordingNotifier) all() []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notified(nil), n.events...)
}

// engineFixture 引擎测试环境
// 李四(创建人)和王五在质量工程师岗位,张三在上级岗位质量经理
type engineFixture struct {
	db         *gorm.DB
	registry   *workflow.Registry
	desc       *workflow.TableDescriptor
	notifier   *recordingNotifier
	engine     *workflow.Engine
	creator    *model.UserModel
	supervisor *model.UserModel
	colleague  *model.UserModel
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newEngineFixture(t *testing.T, opts ...workflow.EngineOption) *engineFixture {
	db := testutil.OpenSQLite(t)
	registry := workflow.DefaultRegistry()
	desc, ok := registry.Lookup(workflow.KindComplaint)
	require.True(t, ok)
	testutil.CreateBusinessTable(t, db, desc)

	dept := testutil.UintPtr(10)
	manager := testutil.CreatePosition(t, db, "质量经理", nil, nil)
	engineer := testutil.CreatePosition(t, db, "质量工程师", testutil.UintPtr(manager), nil)

	f := &engineFixture{
		db:       db,
		registry: registry,
		desc:     desc,
		notifier: &recordingNotifier{},
	}
	f.supervisor = testutil.CreateUser(t, db, "zhangsan", "张三", dept, testutil.UintPtr(manager), true)
	f.creator = testutil.CreateUser(t, db, "lisi", "李四", dept, testutil.UintPtr(engineer), true)
	f.colleague = testutil.CreateUser(t, db, "wangwu", "王五", dept, testutil.UintPtr(engineer), true)

	base := []workflow.EngineOption{
		workflow.WithRegistry(registry),
		workflow.WithNotifier(f.notifier),
		workflow.WithLogger(quietLogger()),
	}
	f.engine = workflow.NewEngine(
		repository.NewUnitOfWork(db),
		workflow.NewSupervisorResolver(workflow.DefaultResolverConfig()),
		append(base, opts...)...,
	)
	return f
}

func actorOf(u *model.UserModel) workflow.Actor {
	return workflow.Actor{ID: u.ID, Username: u.Username, DisplayName: u.RealName}
}

func (f *engineFixture) insert(t *testing.T, status string) string {
	id := testutil.InsertRecord(t, f.db, f.desc, "TS-2025-001", status, f.creator.Username)
	return strconv.FormatInt(id, 10)
}

func (f *engineFixture) todos(t *testing.T, businessID string) []model.TodoItemModel {
	var todos []model.TodoItemModel
	err := f.db.Where("todo_type = ? AND business_id = ?", string(f.desc.Kind), businessID).Order("id").Find(&todos).Error
	require.NoError(t, err)
	return todos
}

func (f *engineFixture) history(t *testing.T, businessID string) []*model.AuditLogModel {
	logs, err := service.NewAuditLogService(repository.NewAuditLogRepository(f.db)).
		History(context.Background(), string(f.desc.Kind), businessID)
	require.NoError(t, err)
	return logs
}

func (f *engineFixture) submit(t *testing.T, businessID string) {
	res, err := f.engine.Submit(context.Background(), f.desc, businessID, actorOf(f.creator))
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
}

// TestEngine_SubmitAssignsHierarchySupervisor 提交后状态变为待审核,并为上级创建待办
func TestEngine_SubmitAssignsHierarchySupervisor(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")

	res, err := f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Submitted", res.Status)
	assert.Equal(t, f.supervisor.ID, res.ReviewerID)
	assert.Equal(t, "张三", res.ReviewerName)
	assert.Contains(t, res.Message, "张三")

	assert.Equal(t, "Submitted", testutil.RecordStatus(t, f.db, f.desc, id))
	assert.True(t, testutil.RecordColumn(t, f.db, f.desc, id, f.desc.SubmitTimeColumn).Valid)

	todos := f.todos(t, id)
	require.Len(t, todos, 1)
	assert.Equal(t, model.TodoStatusPending, todos[0].Status)
	assert.Equal(t, f.supervisor.ID, todos[0].AssignedTo)
	assert.Equal(t, f.creator.ID, todos[0].CreatedBy)
	assert.Equal(t, "TS-2025-001", todos[0].BusinessNo)
	assert.Equal(t, "客户投诉 - TS-2025-001", todos[0].Title)
	assert.Equal(t, model.TodoPriorityHigh, todos[0].Priority)
	assert.Equal(t, todos[0].ID, res.TodoID)
	require.NotNil(t, todos[0].AssignedDeptID)
	assert.Equal(t, *f.creator.DepartmentID, *todos[0].AssignedDeptID)

	logs := f.history(t, id)
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionSubmit, logs[0].Action)
	assert.Equal(t, "Saved", logs[0].FromStatus)
	assert.Equal(t, "Submitted", logs[0].ToStatus)
	assert.Equal(t, f.creator.ID, logs[0].OperatorID)
	assert.Contains(t, logs[0].Details, `"reviewer_tier":"hierarchy"`)

	events := f.notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, f.supervisor.ID, events[0].userID)
	assert.Equal(t, workflow.EventTodoAssigned, events[0].event.Type)
}

// TestEngine_ApproveCompletesTodo 审核通过后待办完成,审核人信息写入业务表
func TestEngine_ApproveCompletesTodo(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	res, err := f.engine.Approve(context.Background(), f.desc, id, actorOf(f.supervisor), "ok")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Approved", res.Status)

	assert.Equal(t, "Approved", testutil.RecordStatus(t, f.db, f.desc, id))
	assert.Equal(t, "张三", testutil.RecordColumn(t, f.db, f.desc, id, "Auditor").String)
	assert.Equal(t, "张三", testutil.RecordColumn(t, f.db, f.desc, id, "AuditorName").String)
	assert.Equal(t, "ok", testutil.RecordColumn(t, f.db, f.desc, id, "AuditRemark").String)
	assert.True(t, testutil.RecordColumn(t, f.db, f.desc, id, "AuditDate").Valid)

	todos := f.todos(t, id)
	require.Len(t, todos, 1)
	assert.Equal(t, model.TodoStatusCompleted, todos[0].Status)
	assert.Equal(t, workflow.TodoResultApproved, todos[0].Result)
	assert.NotNil(t, todos[0].CompletedAt)

	logs := f.history(t, id)
	require.Len(t, logs, 2)
	assert.Equal(t, model.AuditActionApprove, logs[0].Action)
	assert.Equal(t, "ok", logs[0].Remark)
	assert.Equal(t, model.AuditActionSubmit, logs[1].Action)

	events := f.notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, f.creator.ID, events[1].userID)
	assert.Equal(t, workflow.EventTodoCompleted, events[1].event.Type)
	assert.Equal(t, "Approved", events[1].event.Status)
}

// TestEngine_ApproveWithoutRemark 审核通过可以不填备注
func TestEngine_ApproveWithoutRemark(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	res, err := f.engine.Approve(context.Background(), f.desc, id, actorOf(f.supervisor), "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	assert.False(t, testutil.RecordColumn(t, f.db, f.desc, id, "AuditRemark").Valid)
	logs := f.history(t, id)
	require.Len(t, logs, 2)
	assert.Equal(t, "approved", logs[0].Remark)
}

// TestEngine_RejectThenResubmit 驳回后可以重新提交,并生成新的待办
func TestEngine_RejectThenResubmit(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	res, err := f.engine.Reject(context.Background(), f.desc, id, actorOf(f.supervisor), "missing signature")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Rejected", testutil.RecordStatus(t, f.db, f.desc, id))
	assert.Equal(t, "missing signature", testutil.RecordColumn(t, f.db, f.desc, id, "AuditRemark").String)

	todos := f.todos(t, id)
	require.Len(t, todos, 1)
	assert.Equal(t, model.TodoStatusCompleted, todos[0].Status)
	assert.Equal(t, "rejected: missing signature", todos[0].Result)

	f.submit(t, id)
	assert.Equal(t, "Submitted", testutil.RecordStatus(t, f.db, f.desc, id))

	todos = f.todos(t, id)
	require.Len(t, todos, 2)
	assert.Equal(t, model.TodoStatusCompleted, todos[0].Status)
	assert.Equal(t, model.TodoStatusPending, todos[1].Status)

	logs := f.history(t, id)
	require.Len(t, logs, 3)
	assert.Equal(t, model.AuditActionSubmit, logs[0].Action)
	assert.Equal(t, "Rejected", logs[0].FromStatus)
	assert.Equal(t, model.AuditActionReject, logs[1].Action)
	assert.Equal(t, "missing signature", logs[1].Remark)
	assert.Equal(t, model.AuditActionSubmit, logs[2].Action)
}

// TestEngine_RevokeByNonCreator 非创建人撤回被拒绝,不产生任何写入
func TestEngine_RevokeByNonCreator(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	res, err := f.engine.Revoke(context.Background(), f.desc, id, actorOf(f.colleague), true)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, workflow.FailureUnauthorized, res.Failure)

	assert.Equal(t, "Submitted", testutil.RecordStatus(t, f.db, f.desc, id))
	assert.Len(t, f.history(t, id), 1)
	todos := f.todos(t, id)
	require.Len(t, todos, 1)
	assert.Equal(t, model.TodoStatusPending, todos[0].Status)
}

// TestEngine_RevokeByCreator 创建人撤回后回到草稿,待办取消
func TestEngine_RevokeByCreator(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Generated")
	f.submit(t, id)

	res, err := f.engine.Revoke(context.Background(), f.desc, id, actorOf(f.creator), true)
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Saved", res.Status)

	assert.Equal(t, "Saved", testutil.RecordStatus(t, f.db, f.desc, id))
	todos := f.todos(t, id)
	require.Len(t, todos, 1)
	assert.Equal(t, model.TodoStatusCancelled, todos[0].Status)

	logs := f.history(t, id)
	require.Len(t, logs, 2)
	assert.Equal(t, model.AuditActionRevoke, logs[0].Action)
	assert.Equal(t, "Submitted", logs[0].FromStatus)
	assert.Equal(t, "Saved", logs[0].ToStatus)

	events := f.notifier.all()
	require.Len(t, events, 2)
	assert.Equal(t, f.supervisor.ID, events[1].userID)
	assert.Equal(t, workflow.EventTodoCancelled, events[1].event.Type)
}

// TestEngine_RevokeCreatorMatching 历史数据中创建人可能是显示名称或用户 ID
func TestEngine_RevokeCreatorMatching(t *testing.T) {
	tests := []struct {
		name      string
		createdBy func(u *model.UserModel) string
		loose     bool
		want      bool
	}{
		{"username", func(u *model.UserModel) string { return u.Username }, false, true},
		{"username ignores case", func(u *model.UserModel) string { return "LISI" }, false, true},
		{"display name loose", func(u *model.UserModel) string { return u.RealName }, true, true},
		{"display name strict", func(u *model.UserModel) string { return u.RealName }, false, false},
		{"user id loose", func(u *model.UserModel) string { return strconv.FormatUint(uint64(u.ID), 10) }, true, true},
		{"user id strict", func(u *model.UserModel) string { return strconv.FormatUint(uint64(u.ID), 10) }, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t, workflow.WithLooseCreatorMatch(tt.loose))
			id := testutil.InsertRecord(t, f.db, f.desc, "TS-2025-002", "Submitted", tt.createdBy(f.creator))

			res, err := f.engine.Revoke(context.Background(), f.desc, strconv.FormatInt(id, 10), actorOf(f.creator), true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Success, res.Message)
			if !tt.want {
				assert.Equal(t, workflow.FailureUnauthorized, res.Failure)
			}
		})
	}
}

// TestEngine_RevokeWithoutCreatorCheck 不检查创建人时任何人都可以撤回
func TestEngine_RevokeWithoutCreatorCheck(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	res, err := f.engine.Revoke(context.Background(), f.desc, id, actorOf(f.colleague), false)
	require.NoError(t, err)
	assert.True(t, res.Success, res.Message)
	assert.Equal(t, "Saved", testutil.RecordStatus(t, f.db, f.desc, id))
}

// TestEngine_RejectRequiresRemark 驳回原因在查询记录之前校验
func TestEngine_RejectRequiresRemark(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	for _, businessID := range []string{id, "999", "not-a-number"} {
		for _, remark := range []string{"", "   "} {
			res, err := f.engine.Reject(context.Background(), f.desc, businessID, actorOf(f.supervisor), remark)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, workflow.FailureMissingRequiredField, res.Failure)
		}
	}

	assert.Equal(t, "Submitted", testutil.RecordStatus(t, f.db, f.desc, id))
	assert.Len(t, f.history(t, id), 1)
}

// TestEngine_RecordNotFound 记录不存在
func TestEngine_RecordNotFound(t *testing.T) {
	f := newEngineFixture(t)

	for _, businessID := range []string{"999", "abc", ""} {
		res, err := f.engine.Submit(context.Background(), f.desc, businessID, actorOf(f.creator))
		require.NoError(t, err)
		assert.Equal(t, workflow.FailureNotFound, res.Failure, businessID)
	}
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &model.TodoItemModel{}, ""))
	assert.Equal(t, int64(0), testutil.CountRows(t, f.db, &model.AuditLogModel{}, ""))
}

// TestEngine_ZeroPaddedID 带前导零的 ID 与规范 ID 关联同一组待办和审计日志
func TestEngine_ZeroPaddedID(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")

	f.submit(t, "00"+id)
	assert.Len(t, f.todos(t, id), 1)
	assert.Len(t, f.history(t, id), 1)
	assert.Empty(t, f.history(t, "00"+id))

	res, err := f.engine.Approve(context.Background(), f.desc, "0"+id, actorOf(f.supervisor), "")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)

	todos := f.todos(t, id)
	require.Len(t, todos, 1)
	assert.Equal(t, model.TodoStatusCompleted, todos[0].Status)
	assert.Len(t, f.history(t, id), 2)
}

// TestEngine_InvalidStateTransitions 状态不允许时返回当前状态,不产生写入
func TestEngine_InvalidStateTransitions(t *testing.T) {
	tests := []struct {
		name   string
		status string
		run    func(f *engineFixture, id string) (*workflow.Result, error)
	}{
		{"approve draft", "Saved", func(f *engineFixture, id string) (*workflow.Result, error) {
			return f.engine.Approve(context.Background(), f.desc, id, actorOf(f.supervisor), "ok")
		}},
		{"reject approved", "Approved", func(f *engineFixture, id string) (*workflow.Result, error) {
			return f.engine.Reject(context.Background(), f.desc, id, actorOf(f.supervisor), "bad")
		}},
		{"submit submitted", "Submitted", func(f *engineFixture, id string) (*workflow.Result, error) {
			return f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
		}},
		{"submit approved", "Approved", func(f *engineFixture, id string) (*workflow.Result, error) {
			return f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
		}},
		{"submit unknown status", "Archived", func(f *engineFixture, id string) (*workflow.Result, error) {
			return f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
		}},
		{"revoke draft", "draft", func(f *engineFixture, id string) (*workflow.Result, error) {
			return f.engine.Revoke(context.Background(), f.desc, id, actorOf(f.creator), true)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			id := f.insert(t, tt.status)

			res, err := tt.run(f, id)
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, workflow.FailureInvalidStateTransition, res.Failure)
			assert.Contains(t, res.Message, tt.status)

			assert.Equal(t, tt.status, testutil.RecordStatus(t, f.db, f.desc, id))
			assert.Empty(t, f.todos(t, id))
			assert.Empty(t, f.history(t, id))
		})
	}
}

// TestEngine_SubmitAcceptsStatusSpellings 草稿和驳回的各种写法都可以提交
func TestEngine_SubmitAcceptsStatusSpellings(t *testing.T) {
	for _, status := range []string{"Saved", "Draft", "draft", "Generated", "Rejected", "rejected"} {
		t.Run(status, func(t *testing.T) {
			f := newEngineFixture(t)
			id := f.insert(t, status)

			res, err := f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
			require.NoError(t, err)
			assert.True(t, res.Success, res.Message)
			assert.Equal(t, "Submitted", testutil.RecordStatus(t, f.db, f.desc, id))
		})
	}
}

// TestEngine_SubmitWithoutReviewer 找不到审核人时不修改任何数据
func TestEngine_SubmitWithoutReviewer(t *testing.T) {
	db := testutil.OpenSQLite(t)
	desc, ok := workflow.DefaultRegistry().Lookup(workflow.KindRework)
	require.True(t, ok)
	testutil.CreateBusinessTable(t, db, desc)

	creator := testutil.CreateUser(t, db, "lisi", "李四", nil, nil, true)
	testutil.CreateUser(t, db, "retired", "退休员工", nil, nil, false)
	id := testutil.InsertRecord(t, db, desc, "RW-001", "Saved", creator.Username)

	engine := workflow.NewEngine(
		repository.NewUnitOfWork(db),
		workflow.NewSupervisorResolver(workflow.DefaultResolverConfig()),
		workflow.WithLogger(quietLogger()),
	)
	res, err := engine.Submit(context.Background(), desc, strconv.FormatInt(id, 10), actorOf(creator))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, workflow.FailureMissingReviewer, res.Failure)
	assert.Contains(t, res.Message, "administrator")

	assert.Equal(t, "Saved", testutil.RecordStatus(t, db, desc, id))
	assert.Equal(t, int64(0), testutil.CountRows(t, db, &model.TodoItemModel{}, ""))
	assert.Equal(t, int64(0), testutil.CountRows(t, db, &model.AuditLogModel{}, ""))
}

// TestEngine_SubmitRollsBackOnPendingTodo 已有待处理待办时整个提交回滚
func TestEngine_SubmitRollsBackOnPendingTodo(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")

	_, err := service.NewTodoService(repository.NewTodoRepository(f.db)).Create(context.Background(), &service.CreateTodoRequest{
		TodoType:   string(f.desc.Kind),
		BusinessID: id,
		Title:      "stale",
		AssignedTo: f.colleague.ID,
	})
	require.NoError(t, err)

	res, err := f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, workflow.FailureConflict, res.Failure)

	assert.Equal(t, "Saved", testutil.RecordStatus(t, f.db, f.desc, id))
	assert.False(t, testutil.RecordColumn(t, f.db, f.desc, id, f.desc.SubmitTimeColumn).Valid)
	assert.Len(t, f.todos(t, id), 1)
	assert.Empty(t, f.history(t, id))
	assert.Empty(t, f.notifier.all())
}

// TestEngine_ConcurrentSubmit 并发提交同一记录只有一个成功
func TestEngine_ConcurrentSubmit(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.Submit(context.Background(), f.desc, id, actorOf(f.creator))
			if err != nil || !res.Success {
				return
			}
			mu.Lock()
			successes++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, int64(1), testutil.CountRows(t, f.db, &model.TodoItemModel{},
		"todo_type = ? AND business_id = ? AND status = ?", string(f.desc.Kind), id, model.TodoStatusPending))
	assert.Len(t, f.history(t, id), 1)
}

// TestEngine_ApproveAndRejectAreExclusive 通过和驳回只能有一个生效
func TestEngine_ApproveAndRejectAreExclusive(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")
	f.submit(t, id)

	res, err := f.engine.Approve(context.Background(), f.desc, id, actorOf(f.supervisor), "")
	require.NoError(t, err)
	require.True(t, res.Success)

	res, err = f.engine.Reject(context.Background(), f.desc, id, actorOf(f.supervisor), "too late")
	require.NoError(t, err)
	assert.Equal(t, workflow.FailureInvalidStateTransition, res.Failure)

	res, err = f.engine.Approve(context.Background(), f.desc, id, actorOf(f.supervisor), "")
	require.NoError(t, err)
	assert.Equal(t, workflow.FailureInvalidStateTransition, res.Failure)

	assert.Len(t, f.history(t, id), 2)
}

// TestEngine_WritesDeclaredColumnsOnly 未声明的审核列不写入
func TestEngine_WritesDeclaredColumnsOnly(t *testing.T) {
	db := testutil.OpenSQLite(t)
	desc := workflow.NewTableDescriptor("calibration", "CalibrationRecords", "RecordNo", "校准记录")
	desc.SubmitTimeColumn = ""
	desc.AuditorNameColumn = ""
	desc.AuditRemarkColumn = ""
	desc.UpdatedAtColumn = ""
	testutil.CreateBusinessTable(t, db, desc)

	dept := testutil.UintPtr(3)
	head := testutil.CreatePosition(t, db, "计量主管", nil, testutil.IntPtr(5))
	staff := testutil.CreatePosition(t, db, "计量员", nil, nil)
	reviewer := testutil.CreateUser(t, db, "zhaoliu", "赵六", dept, testutil.UintPtr(head), true)
	creator := testutil.CreateUser(t, db, "sunqi", "孙七", dept, testutil.UintPtr(staff), true)
	id := strconv.FormatInt(testutil.InsertRecord(t, db, desc, "CAL-01", "Draft", creator.Username), 10)

	engine := workflow.NewEngine(
		repository.NewUnitOfWork(db),
		workflow.NewSupervisorResolver(workflow.DefaultResolverConfig()),
		workflow.WithLogger(quietLogger()),
	)

	res, err := engine.Submit(context.Background(), desc, id, actorOf(creator))
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, reviewer.ID, res.ReviewerID)

	res, err = engine.Approve(context.Background(), desc, id, actorOf(reviewer), "calibrated")
	require.NoError(t, err)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Approved", testutil.RecordStatus(t, db, desc, id))
	assert.Equal(t, "赵六", testutil.RecordColumn(t, db, desc, id, "Auditor").String)
}

// TestEngine_RejectsInvalidDescriptor 描述校验失败或不在注册表中
func TestEngine_RejectsInvalidDescriptor(t *testing.T) {
	f := newEngineFixture(t)
	id := f.insert(t, "Saved")

	injected := f.desc.Clone()
	injected.StatusColumn = `Status" = 'Approved' --`

	unregistered := f.desc.Clone()
	unregistered.Table = "users"

	for name, desc := range map[string]*workflow.TableDescriptor{
		"nil":          nil,
		"injected":     injected,
		"unregistered": unregistered,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := f.engine.Submit(context.Background(), desc, id, actorOf(f.creator))
			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, workflow.FailureInvalidDescriptor, res.Failure)
		})
	}
	assert.Equal(t, "Saved", testutil.RecordStatus(t, f.db, f.desc, id))
}

// TestEngine_InfrastructureErrorPropagates 数据库错误作为 error 返回
func TestEngine_InfrastructureErrorPropagates(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	dbErr := errors.New("connection refused")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(dbErr)
	mock.ExpectRollback()

	desc, _ := workflow.DefaultRegistry().Lookup(workflow.KindSupplierComplaint)
	engine := workflow.NewEngine(
		repository.NewUnitOfWork(db),
		workflow.NewSupervisorResolver(workflow.DefaultResolverConfig()),
		workflow.WithLogger(quietLogger()),
	)

	res, err := engine.Approve(context.Background(), desc, "42", workflow.Actor{ID: 1, Username: "admin"}, "")
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}
