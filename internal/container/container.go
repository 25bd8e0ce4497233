package container

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mautops/qms-workflow/internal/api"
	"github.com/mautops/qms-workflow/internal/auth"
	"github.com/mautops/qms-workflow/internal/cache"
	"github.com/mautops/qms-workflow/internal/config"
	"github.com/mautops/qms-workflow/internal/database"
	"github.com/mautops/qms-workflow/internal/metrics"
	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/mautops/qms-workflow/internal/service"
	"github.com/mautops/qms-workflow/internal/websocket"
	"github.com/mautops/qms-workflow/internal/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、Redis、审批引擎等
type Container struct {
	cfg       *config.Config
	logger    *logrus.Logger
	db        *gorm.DB
	rdb       *redis.Client
	validator *auth.TokenValidator
	registry  *workflow.Registry
	resolver  *workflow.SupervisorResolver
	engine    *workflow.Engine
	hub       *websocket.Hub
	collector *metrics.Collector

	todoService  service.TodoService
	auditService service.AuditLogService
	organization repository.OrganizationRepository
}

// ResolverConfig 从配置生成审核人查找参数,未配置的项使用默认值
func ResolverConfig(cfg config.WorkflowConfig) workflow.ResolverConfig {
	rc := workflow.DefaultResolverConfig()
	if cfg.SeniorityLevel > 0 {
		rc.SeniorityLevel = cfg.SeniorityLevel
	}
	if len(cfg.TitleMarkers) > 0 {
		rc.TitleMarkers = cfg.TitleMarkers
	}
	if cfg.AdminRoleCode != "" {
		rc.AdminRoleCode = cfg.AdminRoleCode
	}
	if cfg.AdminRoleMarker != "" {
		rc.AdminRoleMarker = cfg.AdminRoleMarker
	}
	return rc
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// 1. 初始化数据库（带重试机制）
	// 默认重试 3 次，初始间隔 1 秒，指数退避
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	c := &Container{cfg: cfg, logger: logger, db: db}

	// 执行数据库迁移
	if err := database.Migrate(db); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 令牌校验器
	c.validator, err = auth.NewTokenValidator(cfg.Auth)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize token validator: %w", err)
	}

	// 3. Redis,未配置时不启用幂等控制
	if cfg.Redis.Addr != "" {
		c.rdb, err = cache.OpenRedis(cfg.Redis.Addr, cfg.Redis.DB)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
	}

	// 4. 业务模块注册表
	c.registry, err = workflow.LoadRegistry(cfg.Workflow.RegistryFile)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load business module registry: %w", err)
	}

	// 5. 审批引擎,流转结果通过 WebSocket 推送
	c.hub = websocket.NewHub(logger)
	c.resolver = workflow.NewSupervisorResolver(ResolverConfig(cfg.Workflow))
	c.engine = workflow.NewEngine(
		repository.NewUnitOfWork(db),
		c.resolver,
		workflow.WithRegistry(c.registry),
		workflow.WithNotifier(c.hub),
		workflow.WithLogger(logger),
		workflow.WithLooseCreatorMatch(cfg.Workflow.LooseCreatorMatch),
		workflow.WithTodoPriority(cfg.Workflow.TodoPriority),
	)

	c.todoService = service.NewTodoService(repository.NewTodoRepository(db))
	c.auditService = service.NewAuditLogService(repository.NewAuditLogRepository(db))
	c.organization = repository.NewOrganizationRepository(db)

	// 6. 指标收集器
	if cfg.Metrics.Enabled {
		c.collector = metrics.NewCollector(db, cfg.Metrics.CollectSpec, logger)
	}

	return c, nil
}

// Start 启动后台任务
func (c *Container) Start() error {
	go c.hub.Run()
	if c.collector != nil {
		if err := c.collector.Start(); err != nil {
			return err
		}
	}
	return nil
}

// Router 创建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRoutes(&api.RouterDeps{
		Config:       c.cfg,
		DB:           c.db,
		Redis:        c.rdb,
		Validator:    c.validator,
		Engine:       c.engine,
		Registry:     c.registry,
		TodoService:  c.todoService,
		AuditService: c.auditService,
		Organization: c.organization,
		Hub:          c.hub,
		Logger:       c.logger,
	})
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Engine 获取审批引擎
func (c *Container) Engine() *workflow.Engine {
	return c.engine
}

// Registry 获取业务模块注册表
func (c *Container) Registry() *workflow.Registry {
	return c.registry
}

// Resolver 获取审核人查找器
func (c *Container) Resolver() *workflow.SupervisorResolver {
	return c.resolver
}

// Organization 获取组织架构仓储
func (c *Container) Organization() repository.OrganizationRepository {
	return c.organization
}

// Hub 获取 WebSocket Hub
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// Close 关闭容器,清理资源
func (c *Container) Close() {
	if c.collector != nil {
		c.collector.Stop()
	}
	if c.hub != nil {
		c.hub.Stop()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			c.logger.WithError(err).Warn("failed to close redis")
		}
	}
	if c.db != nil {
		if sqlDB, err := c.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
