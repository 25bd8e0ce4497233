package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/qms-workflow/internal/service"
	"github.com/mautops/qms-workflow/internal/utils"
	"github.com/mautops/qms-workflow/internal/workflow"
)

// TransitionRequest 流转请求
type TransitionRequest struct {
	Remark string `json:"remark"`
}

// WorkflowController 审批流转控制器
type WorkflowController struct {
	engine          *workflow.Engine
	registry        *workflow.Registry
	auditService    service.AuditLogService
	remarkMaxLength int
}

// NewWorkflowController 创建审批流转控制器
func NewWorkflowController(engine *workflow.Engine, registry *workflow.Registry, auditService service.AuditLogService, remarkMaxLength int) *WorkflowController {
	return &WorkflowController{
		engine:          engine,
		registry:        registry,
		auditService:    auditService,
		remarkMaxLength: remarkMaxLength,
	}
}

// transition 一次流转调用需要的参数
type transition struct {
	desc       *workflow.TableDescriptor
	businessID string
	actor      workflow.Actor
	remark     string
}

// bind 解析路径参数、操作人和审核意见,失败时已写出响应
func (c *WorkflowController) bind(ctx *gin.Context) (*transition, bool) {
	desc, ok := c.registry.Lookup(workflow.Kind(ctx.Param("kind")))
	if !ok {
		Error(ctx, http.StatusNotFound, "unknown business module", ctx.Param("kind"))
		return nil, false
	}

	id := ctx.Param("id")
	if err := utils.ValidateBusinessID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid business id", err.Error())
		return nil, false
	}

	actor, ok := GetActor(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "")
		return nil, false
	}

	var req TransitionRequest
	if ctx.Request.ContentLength != 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
			return nil, false
		}
	}
	remark, err := utils.NormalizeRemark(req.Remark, c.remarkMaxLength)
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid remark", err.Error())
		return nil, false
	}

	return &transition{desc: desc, businessID: id, actor: actor, remark: remark}, true
}

// handle 执行流转并输出结果
func (c *WorkflowController) handle(ctx *gin.Context, action string, fn func(context.Context, *transition) (*workflow.Result, error)) {
	t, ok := c.bind(ctx)
	if !ok {
		return
	}

	result, err := fn(ctx.Request.Context(), t)
	if err != nil {
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to "+action))
		return
	}
	WriteResult(ctx, result)
}

// Submit 提交审核
// @Summary      提交审核
// @Description  草稿或已驳回的记录提交审核,按组织架构查找审核人并创建待办
// @Tags         审批流转
// @Accept       json
// @Produce      json
// @Param        kind  path    string  true  "业务模块"
// @Param        id    path    string  true  "业务记录 ID"
// @Param        Idempotency-Key  header  string  false  "幂等键"
// @Success      200  {object}  Response{data=workflow.Result}
// @Failure      400  {object}  ErrorResponse{data=workflow.Result}
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse{data=workflow.Result}
// @Failure      404  {object}  ErrorResponse{data=workflow.Result}
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflows/{kind}/{id}/submit [post]
// @Security     BearerAuth
func (c *WorkflowController) Submit(ctx *gin.Context) {
	c.handle(ctx, "submit", func(rc context.Context, t *transition) (*workflow.Result, error) {
		return c.engine.Submit(rc, t.desc, t.businessID, t.actor)
	})
}

// Approve 审核通过
// @Summary      审核通过
// @Description  待审核的记录审核通过,完成待办
// @Tags         审批流转
// @Accept       json
// @Produce      json
// @Param        kind  path    string  true  "业务模块"
// @Param        id    path    string  true  "业务记录 ID"
// @Param        Idempotency-Key  header  string  false  "幂等键"
// @Param        request  body  TransitionRequest  false  "审核意见"
// @Success      200  {object}  Response{data=workflow.Result}
// @Failure      400  {object}  ErrorResponse{data=workflow.Result}
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse{data=workflow.Result}
// @Failure      404  {object}  ErrorResponse{data=workflow.Result}
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflows/{kind}/{id}/approve [post]
// @Security     BearerAuth
func (c *WorkflowController) Approve(ctx *gin.Context) {
	c.handle(ctx, "approve", func(rc context.Context, t *transition) (*workflow.Result, error) {
		return c.engine.Approve(rc, t.desc, t.businessID, t.actor, t.remark)
	})
}

// Reject 审核驳回,必须填写驳回原因
// @Summary      审核驳回
// @Description  待审核的记录驳回,驳回原因写入待办结果
// @Tags         审批流转
// @Accept       json
// @Produce      json
// @Param        kind  path    string  true  "业务模块"
// @Param        id    path    string  true  "业务记录 ID"
// @Param        Idempotency-Key  header  string  false  "幂等键"
// @Param        request  body  TransitionRequest  true  "驳回原因"
// @Success      200  {object}  Response{data=workflow.Result}
// @Failure      400  {object}  ErrorResponse{data=workflow.Result}
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse{data=workflow.Result}
// @Failure      404  {object}  ErrorResponse{data=workflow.Result}
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflows/{kind}/{id}/reject [post]
// @Security     BearerAuth
func (c *WorkflowController) Reject(ctx *gin.Context) {
	c.handle(ctx, "reject", func(rc context.Context, t *transition) (*workflow.Result, error) {
		return c.engine.Reject(rc, t.desc, t.businessID, t.actor, t.remark)
	})
}

// Revoke 撤回提交,只有创建人可以撤回
// @Summary      撤回提交
// @Description  创建人撤回待审核的记录,取消待办
// @Tags         审批流转
// @Accept       json
// @Produce      json
// @Param        kind  path    string  true  "业务模块"
// @Param        id    path    string  true  "业务记录 ID"
// @Param        Idempotency-Key  header  string  false  "幂等键"
// @Success      200  {object}  Response{data=workflow.Result}
// @Failure      400  {object}  ErrorResponse{data=workflow.Result}
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse{data=workflow.Result}
// @Failure      404  {object}  ErrorResponse{data=workflow.Result}
// @Failure      409  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflows/{kind}/{id}/revoke [post]
// @Security     BearerAuth
func (c *WorkflowController) Revoke(ctx *gin.Context) {
	c.handle(ctx, "revoke", func(rc context.Context, t *transition) (*workflow.Result, error) {
		return c.engine.Revoke(rc, t.desc, t.businessID, t.actor, true)
	})
}

// AuditLogs 查询业务记录的审计日志
// @Summary      审计日志
// @Description  按时间倒序返回业务记录的流转历史
// @Tags         审批流转
// @Produce      json
// @Param        kind  path  string  true  "业务模块"
// @Param        id    path  string  true  "业务记录 ID"
// @Success      200  {object}  Response{data=[]model.AuditLogModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /workflows/{kind}/{id}/audit-logs [get]
// @Security     BearerAuth
func (c *WorkflowController) AuditLogs(ctx *gin.Context) {
	desc, ok := c.registry.Lookup(workflow.Kind(ctx.Param("kind")))
	if !ok {
		Error(ctx, http.StatusNotFound, "unknown business module", ctx.Param("kind"))
		return
	}
	id := ctx.Param("id")
	if err := utils.ValidateBusinessID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid business id", err.Error())
		return
	}
	key, err := desc.CanonicalID(id)
	if err != nil {
		Error(ctx, http.StatusNotFound, "record not found", err.Error())
		return
	}

	logs, err := c.auditService.History(ctx.Request.Context(), string(desc.Kind), key)
	if err != nil {
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to query audit logs"))
		return
	}
	Success(ctx, logs)
}

// Modules 列出已注册的业务模块
// @Summary      业务模块列表
// @Tags         审批流转
// @Produce      json
// @Success      200  {object}  Response
// @Failure      401  {object}  ErrorResponse
// @Router       /workflows [get]
// @Security     BearerAuth
func (c *WorkflowController) Modules(ctx *gin.Context) {
	kinds := c.registry.Kinds()
	modules := make([]gin.H, 0, len(kinds))
	for _, kind := range kinds {
		desc, _ := c.registry.Lookup(kind)
		modules = append(modules, gin.H{"kind": desc.Kind, "title": desc.Title()})
	}
	Success(ctx, modules)
}
