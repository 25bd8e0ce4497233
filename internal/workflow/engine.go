package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mautops/qms-workflow/internal/metrics"
	"github.com/mautops/qms-workflow/internal/model"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/service"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const tracerName = "github.com/mautops/qms-workflow/internal/workflow"

// 待办处理结果
const (
	TodoResultApproved       = "approved"
	TodoResultRejectedPrefix = "rejected: "
)

// 审计备注默认值
const (
	remarkSubmitted = "submitted for review"
	remarkApproved  = "approved"
	remarkRevoked   = "revoked"
)

// errAbort 业务规则失败时回滚事务
var errAbort = errors.New("workflow transition aborted")

// EngineOption 引擎选项
type EngineOption func(*Engine)

// WithNotifier 设置事件推送
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithLogger 设置日志
func WithLogger(l logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRegistry 只允许访问注册表中的业务表
func WithRegistry(r *Registry) EngineOption {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithLooseCreatorMatch 撤回时是否兼容显示名称和用户 ID 匹配创建人
func WithLooseCreatorMatch(loose bool) EngineOption {
	return func(e *Engine) {
		e.looseCreatorMatch = loose
	}
}

// WithTodoPriority 设置提交审核时创建的待办优先级
func WithTodoPriority(priority string) EngineOption {
	return func(e *Engine) {
		if priority != "" {
			e.todoPriority = priority
		}
	}
}

// Engine 审批流程引擎
// 每次操作在一个事务内完成: 读取记录、检查前置条件、更新状态、处理待办、写审计日志
type Engine struct {
	uow               repository.UnitOfWork
	resolver          *SupervisorResolver
	registry          *Registry
	notifier          Notifier
	logger            logrus.FieldLogger
	looseCreatorMatch bool
	todoPriority      string
	now               func() time.Time
}

// NewEngine 创建审批流程引擎
func NewEngine(uow repository.UnitOfWork, resolver *SupervisorResolver, opts ...EngineOption) *Engine {
	e := &Engine{
		uow:               uow,
		resolver:          resolver,
		notifier:          nopNotifier{},
		logger:            logrus.StandardLogger(),
		looseCreatorMatch: true,
		todoPriority:      model.TodoPriorityHigh,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit 提交审核
func (e *Engine) Submit(ctx context.Context, desc *TableDescriptor, businessID string, actor Actor) (*Result, error) {
	return e.execute(ctx, desc, businessID, actor, operation{
		action: model.AuditActionSubmit,
		apply: func(ctx context.Context, s *scope) (*Result, error) {
			current := s.desc.Statuses.Canonical(s.record.Status)
			if current != StatusDraft && current != StatusRejected {
				return fail(FailureInvalidStateTransition, "current status is %q, cannot submit for review", s.record.Status), nil
			}

			resolution, err := e.resolver.Resolve(ctx, s.repos.Organization, actor.ID)
			if err != nil {
				return nil, err
			}
			metrics.RecordReviewerResolution(resolution.Tier.String())
			if !resolution.Found() {
				return fail(FailureMissingReviewer, "no reviewer found, please contact an administrator to configure a department supervisor"), nil
			}
			reviewer := resolution.Candidate

			extra := make(map[string]interface{})
			setColumn(extra, s.desc.SubmitTimeColumn, s.now)
			if res, err := s.swap(ctx, StatusSubmitted, extra); res != nil || err != nil {
				return res, err
			}

			title := fmt.Sprintf("%s - %s", s.desc.Title(), s.record.BusinessNumber)
			todo, err := s.todos().Create(ctx, &service.CreateTodoRequest{
				TodoType:       string(s.desc.Kind),
				BusinessID:     s.key,
				BusinessNo:     s.record.BusinessNumber,
				Title:          title,
				Content:        fmt.Sprintf("%s submitted %s for review", actor.Name(), s.desc.Title()),
				Priority:       e.todoPriority,
				CreatedBy:      actor.ID,
				CreatedByName:  actor.Name(),
				AssignedTo:     reviewer.ID,
				AssignedToName: reviewer.DisplayName,
				AssignedDeptID: reviewer.DepartmentID,
			})
			if errors.Is(err, service.ErrPendingTodoExists) {
				return fail(FailureConflict, "a pending review already exists for this record"), nil
			}
			if err != nil {
				return nil, err
			}

			details := map[string]interface{}{
				"reviewer_id":   reviewer.ID,
				"reviewer_name": reviewer.DisplayName,
				"reviewer_tier": resolution.Tier.String(),
				"todo_id":       todo.ID,
			}
			if err := s.audit(ctx, model.AuditActionSubmit, StatusSubmitted, remarkSubmitted, details); err != nil {
				return nil, err
			}

			s.notify(e.notifier, reviewer.ID, EventTodoAssigned, StatusSubmitted, title)

			res := succeed(s.desc.Statuses.Spell(StatusSubmitted), "submitted for review, reviewer: %s", reviewer.DisplayName)
			res.ReviewerID = reviewer.ID
			res.ReviewerName = reviewer.DisplayName
			res.TodoID = todo.ID
			return res, nil
		},
	})
}

// Approve 审核通过,remark 可选
func (e *Engine) Approve(ctx context.Context, desc *TableDescriptor, businessID string, actor Actor, remark string) (*Result, error) {
	remark = strings.TrimSpace(remark)
	return e.execute(ctx, desc, businessID, actor, operation{
		action: model.AuditActionApprove,
		apply: func(ctx context.Context, s *scope) (*Result, error) {
			if s.desc.Statuses.Canonical(s.record.Status) != StatusSubmitted {
				return fail(FailureInvalidStateTransition, "current status is %q, cannot approve", s.record.Status), nil
			}

			pending, err := s.pendingTodo(ctx)
			if err != nil {
				return nil, err
			}
			if res, err := s.swap(ctx, StatusApproved, s.auditorColumns(remark)); res != nil || err != nil {
				return res, err
			}
			if _, err := s.todos().Complete(ctx, string(s.desc.Kind), s.key, TodoResultApproved); err != nil {
				return nil, err
			}

			auditRemark := remark
			if auditRemark == "" {
				auditRemark = remarkApproved
			}
			if err := s.audit(ctx, model.AuditActionApprove, StatusApproved, auditRemark, nil); err != nil {
				return nil, err
			}

			if pending != nil {
				s.notify(e.notifier, pending.CreatedBy, EventTodoCompleted, StatusApproved, TodoResultApproved)
			}
			return succeed(s.desc.Statuses.Spell(StatusApproved), "approved"), nil
		},
	})
}

// Reject 审核驳回,必须填写驳回原因
func (e *Engine) Reject(ctx context.Context, desc *TableDescriptor, businessID string, actor Actor, remark string) (*Result, error) {
	remark = strings.TrimSpace(remark)
	return e.execute(ctx, desc, businessID, actor, operation{
		action: model.AuditActionReject,
		precheck: func() *Result {
			if remark == "" {
				return fail(FailureMissingRequiredField, "rejection reason is required")
			}
			return nil
		},
		apply: func(ctx context.Context, s *scope) (*Result, error) {
			if s.desc.Statuses.Canonical(s.record.Status) != StatusSubmitted {
				return fail(FailureInvalidStateTransition, "current status is %q, cannot reject", s.record.Status), nil
			}

			pending, err := s.pendingTodo(ctx)
			if err != nil {
				return nil, err
			}
			if res, err := s.swap(ctx, StatusRejected, s.auditorColumns(remark)); res != nil || err != nil {
				return res, err
			}
			result := TodoResultRejectedPrefix + remark
			if _, err := s.todos().Complete(ctx, string(s.desc.Kind), s.key, result); err != nil {
				return nil, err
			}
			if err := s.audit(ctx, model.AuditActionReject, StatusRejected, remark, nil); err != nil {
				return nil, err
			}

			if pending != nil {
				s.notify(e.notifier, pending.CreatedBy, EventTodoCompleted, StatusRejected, result)
			}
			return succeed(s.desc.Statuses.Spell(StatusRejected), "rejected"), nil
		},
	})
}

// Revoke 撤回审核,checkCreator 为 true 时只有创建人可以撤回
func (e *Engine) Revoke(ctx context.Context, desc *TableDescriptor, businessID string, actor Actor, checkCreator bool) (*Result, error) {
	return e.execute(ctx, desc, businessID, actor, operation{
		action: model.AuditActionRevoke,
		apply: func(ctx context.Context, s *scope) (*Result, error) {
			if checkCreator && !MatchCreator(s.record.CreatedBy, actor, e.looseCreatorMatch) {
				return fail(FailureUnauthorized, "only the creator can revoke this record"), nil
			}
			if s.desc.Statuses.Canonical(s.record.Status) != StatusSubmitted {
				return fail(FailureInvalidStateTransition, "current status is %q, cannot revoke", s.record.Status), nil
			}

			pending, err := s.pendingTodo(ctx)
			if err != nil {
				return nil, err
			}
			if res, err := s.swap(ctx, StatusDraft, nil); res != nil || err != nil {
				return res, err
			}
			if _, err := s.todos().Cancel(ctx, string(s.desc.Kind), s.key); err != nil {
				return nil, err
			}
			if err := s.audit(ctx, model.AuditActionRevoke, StatusDraft, remarkRevoked, nil); err != nil {
				return nil, err
			}

			if pending != nil {
				s.notify(e.notifier, pending.AssignedTo, EventTodoCancelled, StatusDraft, remarkRevoked)
			}
			return succeed(s.desc.Statuses.Spell(StatusDraft), "revoked"), nil
		},
	})
}

// operation 一次状态流转
type operation struct {
	action   string
	precheck func() *Result // 读取记录之前的校验
	apply    func(ctx context.Context, s *scope) (*Result, error)
}

// execute 记录追踪、指标和日志
func (e *Engine) execute(ctx context.Context, desc *TableDescriptor, businessID string, actor Actor, op operation) (*Result, error) {
	kind := ""
	if desc != nil {
		kind = string(desc.Kind)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "workflow."+op.action, trace.WithAttributes(
		attribute.String("workflow.kind", kind),
		attribute.String("workflow.business_id", businessID),
		attribute.Int64("workflow.operator_id", int64(actor.ID)),
	))
	defer span.End()

	start := time.Now()
	res, err := e.run(ctx, desc, businessID, actor, op)
	duration := time.Since(start).Seconds()

	entry := e.logger.WithFields(logrus.Fields{
		"kind":        kind,
		"business_id": businessID,
		"action":      op.action,
		"operator_id": actor.ID,
		"request_id":  service.GetRequestID(ctx),
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordTransition(kind, op.action, "error", duration)
		entry.WithError(err).Error("workflow transition failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("workflow.outcome", res.outcome()))
	metrics.RecordTransition(kind, op.action, res.outcome(), duration)
	if res.Success {
		entry.WithField("status", res.Status).Info("workflow transition completed")
	} else {
		entry.WithField("failure", res.Failure).Warn(res.Message)
	}
	return res, nil
}

// run 在事务中执行流转,业务规则失败时回滚
func (e *Engine) run(ctx context.Context, desc *TableDescriptor, businessID string, actor Actor, op operation) (*Result, error) {
	if op.precheck != nil {
		if res := op.precheck(); res != nil {
			return res, nil
		}
	}
	if desc == nil {
		return fail(FailureInvalidDescriptor, "table descriptor is required"), nil
	}
	if err := desc.Validate(); err != nil {
		return fail(FailureInvalidDescriptor, "invalid table descriptor: %v", err), nil
	}
	if e.registry != nil && !e.registry.Allows(desc) {
		return fail(FailureInvalidDescriptor, "table %s is not registered for %s", desc.Table, desc.Kind), nil
	}
	if actor.ID == 0 && actor.Username == "" {
		return fail(FailureUnauthorized, "operator identity is required"), nil
	}
	id, err := desc.bindID(businessID)
	if err != nil {
		return fail(FailureNotFound, "record not found"), nil
	}

	s := &scope{
		desc:  desc,
		table: desc.recordTable(),
		id:    id,
		key:   keyOf(id),
		actor: actor,
		now:   e.now(),
	}

	var result *Result
	err = e.uow.WithinTx(ctx, func(r repository.Repos) error {
		s.repos = r

		record, err := r.Records.FindForUpdate(ctx, s.table, s.id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = fail(FailureNotFound, "record not found")
			return errAbort
		}
		if err != nil {
			return fmt.Errorf("failed to load record: %w", err)
		}
		s.record = record

		res, err := op.apply(ctx, s)
		if err != nil {
			return err
		}
		result = res
		if !res.Success {
			return errAbort
		}
		return nil
	})
	if err != nil && !errors.Is(err, errAbort) {
		return nil, err
	}

	if result.Success {
		for _, fn := range s.after {
			fn()
		}
	}
	return result, nil
}

// scope 单次流转的事务上下文
type scope struct {
	desc   *TableDescriptor
	table  repository.RecordTable
	id     interface{}
	key    string // 待办和审计日志使用的业务 ID
	actor  Actor
	now    time.Time
	record *repository.BusinessRecord
	repos  repository.Repos
	after  []func() // 事务提交后执行
}

func (s *scope) todos() service.TodoService {
	return service.NewTodoService(s.repos.Todos)
}

func (s *scope) audits() service.AuditLogService {
	return service.NewAuditLogService(s.repos.AuditLogs)
}

// swap 按读取时的状态更新记录,返回非 nil 的 Result 表示冲突
func (s *scope) swap(ctx context.Context, to Status, extra map[string]interface{}) (*Result, error) {
	updates := map[string]interface{}{
		s.desc.StatusColumn: s.desc.Statuses.Spell(to),
	}
	setColumn(updates, s.desc.UpdatedAtColumn, s.now)
	for column, value := range extra {
		updates[column] = value
	}

	ok, err := s.repos.Records.CompareAndSwapStatus(ctx, s.table, s.id, s.record.Status, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update record status: %w", err)
	}
	if !ok {
		return fail(FailureConflict, "record was modified by another request, please retry"), nil
	}
	return nil, nil
}

// auditorColumns 审核人相关列,只写描述中声明的列
func (s *scope) auditorColumns(remark string) map[string]interface{} {
	columns := make(map[string]interface{})
	setColumn(columns, s.desc.AuditorColumn, s.actor.Name())
	setColumn(columns, s.desc.AuditorNameColumn, s.actor.Name())
	setColumn(columns, s.desc.AuditDateColumn, s.now)
	if remark != "" {
		setColumn(columns, s.desc.AuditRemarkColumn, remark)
	}
	return columns
}

// pendingTodo 当前待处理的待办,没有时返回 nil
func (s *scope) pendingTodo(ctx context.Context) (*model.TodoItemModel, error) {
	todo, err := s.repos.Todos.FindPending(ctx, string(s.desc.Kind), s.key)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending todo: %w", err)
	}
	return todo, nil
}

// audit 追加审计日志
func (s *scope) audit(ctx context.Context, action string, to Status, remark string, details interface{}) error {
	entry := &model.AuditLogModel{
		BusinessType: string(s.desc.Kind),
		BusinessID:   s.key,
		BusinessNo:   s.record.BusinessNumber,
		Action:       action,
		FromStatus:   s.record.Status,
		ToStatus:     s.desc.Statuses.Spell(to),
		OperatorID:   s.actor.ID,
		OperatorName: s.actor.Name(),
		Remark:       remark,
		CreatedAt:    s.now,
	}
	if err := s.audits().Append(ctx, entry, details); err != nil {
		return fmt.Errorf("failed to append audit log: %w", err)
	}
	return nil
}

// notify 事务提交后推送事件
func (s *scope) notify(n Notifier, userID uint, eventType string, status Status, message string) {
	if userID == 0 {
		return
	}
	event := Event{
		Type:       eventType,
		Kind:       s.desc.Kind,
		BusinessID: s.key,
		BusinessNo: s.record.BusinessNumber,
		Status:     s.desc.Statuses.Spell(status),
		Message:    message,
		Operator:   s.actor.Name(),
		At:         s.now,
	}
	s.after = append(s.after, func() {
		n.Notify(userID, event)
	})
}

func setColumn(m map[string]interface{}, column string, value interface{}) {
	if column != "" {
		m[column] = value
	}
}
