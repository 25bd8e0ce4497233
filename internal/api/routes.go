package api

import (
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/mautops/qms-workflow/docs" // 导入生成的 docs 包
	"github.com/mautops/qms-workflow/internal/auth"
	"github.com/mautops/qms-workflow/internal/config"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/service"
	"github.com/mautops/qms-workflow/internal/websocket"
	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
// Redis 和 Hub 可以为 nil,此时不启用幂等控制和实时推送
type RouterDeps struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        *redis.Client
	Validator    *auth.TokenValidator
	Engine       *workflow.Engine
	Registry     *workflow.Registry
	TodoService  service.TodoService
	AuditService service.AuditLogService
	Organization repository.OrganizationRepository
	Hub          *websocket.Hub
	Logger       logrus.FieldLogger
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	cfg := deps.Config
	router := gin.New()

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing.ServiceName))
	}
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.RateLimit.Enabled {
		router.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	router.Use(ErrorHandlerMiddleware())

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.Redis)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	if cfg.Metrics.Enabled {
		router.GET("/metrics", MetricsHandler())
	}

	// Swagger UI 路由
	if cfg.Swagger.Enabled {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
			ginSwagger.URL("/swagger/doc.json"),
		))
	}

	authenticate := ActorMiddleware(deps.Validator, deps.Organization)

	// WebSocket 路由
	if deps.Hub != nil {
		resolve := func(c *gin.Context) (uint, bool) {
			actor, ok := GetActor(c)
			return actor.ID, ok
		}
		router.GET("/ws/todos", authenticate, websocket.WebSocketHandler(deps.Hub, resolve, cfg.CORS.AllowedOrigins))
	}

	workflowController := NewWorkflowController(deps.Engine, deps.Registry, deps.AuditService, cfg.Workflow.RemarkMaxLength)
	todoController := NewTodoController(deps.TodoService)
	idempotent := IdempotencyMiddleware(deps.Redis, time.Duration(cfg.Redis.IdempotencyTTL)*time.Second)

	// API v1 路由组
	v1 := router.Group("/api/v1", authenticate)
	{
		// 审批流转路由
		v1.GET("/workflows", workflowController.Modules)
		workflows := v1.Group("/workflows/:kind/:id")
		{
			workflows.POST("/submit", idempotent, workflowController.Submit)
			workflows.POST("/approve", idempotent, workflowController.Approve)
			workflows.POST("/reject", idempotent, workflowController.Reject)
			workflows.POST("/revoke", idempotent, workflowController.Revoke)
			workflows.GET("/audit-logs", workflowController.AuditLogs)
		}

		// 待办路由
		todos := v1.Group("/todos")
		{
			todos.GET("", todoController.List)
			todos.GET("/count", todoController.Count)
			todos.GET("/count-by-type", todoController.CountByType)
			todos.PUT("/batch-read", todoController.BatchMarkRead)
			todos.PUT("/:id/read", todoController.MarkRead)
		}
	}

	return router
}
