package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/service"
)

const maxPageSize = 100

// TodoController 待办控制器
type TodoController struct {
	todoService service.TodoService
}

// NewTodoController 创建待办控制器
func NewTodoController(todoService service.TodoService) *TodoController {
	return &TodoController{
		todoService: todoService,
	}
}

// BatchReadRequest 批量已读请求
type BatchReadRequest struct {
	IDs []uint `json:"ids"`
}

// List 查询当前用户的待办
// @Summary      待办列表
// @Description  分配给当前用户或由当前用户发起的待办,待处理优先,再按优先级和创建时间排序
// @Tags         待办
// @Produce      json
// @Param        status     query  string  false  "状态: pending, completed, cancelled"
// @Param        todo_type  query  string  false  "业务模块"
// @Param        is_read    query  bool    false  "是否已读"
// @Param        page       query  int     false  "页码"  default(1)
// @Param        page_size  query  int     false  "每页数量"  default(20)
// @Success      200  {object}  PaginatedResponse{data=[]model.TodoItemModel}
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /todos [get]
// @Security     BearerAuth
func (c *TodoController) List(ctx *gin.Context) {
	actor, ok := GetActor(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "")
		return
	}

	filter := &repository.TodoFilter{
		UserID:   actor.ID,
		Status:   ctx.Query("status"),
		TodoType: ctx.Query("todo_type"),
		Page:     queryInt(ctx, "page", 1),
		PageSize: queryInt(ctx, "page_size", 20),
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > maxPageSize {
		filter.PageSize = 20
	}
	if raw := ctx.Query("is_read"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			Error(ctx, http.StatusBadRequest, "invalid is_read", err.Error())
			return
		}
		filter.IsRead = &isRead
	}

	todos, total, err := c.todoService.ListForUser(ctx.Request.Context(), filter)
	if err != nil {
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to list todos"))
		return
	}
	Paginated(ctx, todos, NewPaginationInfo(filter.Page, filter.PageSize, total))
}

// Count 统计当前用户的待办数量
// @Summary      待办数量
// @Tags         待办
// @Produce      json
// @Success      200  {object}  Response{data=repository.TodoCounts}
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /todos/count [get]
// @Security     BearerAuth
func (c *TodoController) Count(ctx *gin.Context) {
	actor, ok := GetActor(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	counts, err := c.todoService.CountForUser(ctx.Request.Context(), actor.ID)
	if err != nil {
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to count todos"))
		return
	}
	Success(ctx, counts)
}

// CountByType 按类型统计分配给当前用户的待办
// @Summary      按类型统计待办
// @Tags         待办
// @Produce      json
// @Success      200  {object}  Response{data=[]repository.TodoTypeCount}
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /todos/count-by-type [get]
// @Security     BearerAuth
func (c *TodoController) CountByType(ctx *gin.Context) {
	actor, ok := GetActor(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	counts, err := c.todoService.CountByType(ctx.Request.Context(), actor.ID)
	if err != nil {
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to count todos"))
		return
	}
	Success(ctx, counts)
}

// MarkRead 标记待办为已读
// @Summary      标记已读
// @Description  只能标记分配给自己的待办
// @Tags         待办
// @Produce      json
// @Param        id  path  int  true  "待办 ID"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /todos/{id}/read [put]
// @Security     BearerAuth
func (c *TodoController) MarkRead(ctx *gin.Context) {
	actor, ok := GetActor(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(ctx, http.StatusBadRequest, "invalid todo id", ctx.Param("id"))
		return
	}

	if err := c.todoService.MarkRead(ctx.Request.Context(), actor.ID, uint(id)); err != nil {
		if errors.Is(err, service.ErrTodoNotFound) {
			Error(ctx, http.StatusNotFound, "todo not found", "")
			return
		}
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to mark todo read"))
		return
	}
	Success(ctx, nil)
}

// BatchMarkRead 批量标记已读
// @Summary      批量标记已读
// @Tags         待办
// @Accept       json
// @Produce      json
// @Param        request  body  BatchReadRequest  true  "待办 ID 列表,最多 100 个"
// @Success      200  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /todos/batch-read [put]
// @Security     BearerAuth
func (c *TodoController) BatchMarkRead(ctx *gin.Context) {
	actor, ok := GetActor(ctx)
	if !ok {
		Error(ctx, http.StatusUnauthorized, "unauthorized", "")
		return
	}
	var req BatchReadRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if len(req.IDs) == 0 {
		Error(ctx, http.StatusBadRequest, "ids cannot be empty", "")
		return
	}
	if len(req.IDs) > maxPageSize {
		Error(ctx, http.StatusBadRequest, "too many ids", strconv.Itoa(len(req.IDs)))
		return
	}

	updated, err := c.todoService.BatchMarkRead(ctx.Request.Context(), actor.ID, req.IDs)
	if err != nil {
		_ = ctx.Error(WrapError(err, http.StatusInternalServerError, "failed to mark todos read"))
		return
	}
	Success(ctx, gin.H{"updated": updated})
}

// queryInt 读取整数查询参数,解析失败时返回默认值
func queryInt(ctx *gin.Context, key string, def int) int {
	raw := ctx.Query(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
