package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/mautops/qms-workflow/internal/repository"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultCollectSpec 默认每 15 秒收集一次
const DefaultCollectSpec = "@every 15s"

// Collector 指标收集器
// 按 cron 表达式定期刷新数据库连接数和待处理待办数
type Collector struct {
	db     *gorm.DB
	todos  repository.TodoRepository
	spec   string
	logger logrus.FieldLogger
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, spec string, logger logrus.FieldLogger) *Collector {
	if spec == "" {
		spec = DefaultCollectSpec
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Collector{
		db:     db,
		todos:  repository.NewTodoRepository(db),
		spec:   spec,
		logger: logger,
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动指标收集器
func (c *Collector) Start() error {
	if _, err := c.cron.AddFunc(c.spec, c.Collect); err != nil {
		return fmt.Errorf("invalid metrics collect spec %q: %w", c.spec, err)
	}
	c.cron.Start()
	return nil
}

// Stop 停止指标收集器,等待正在执行的收集完成
func (c *Collector) Stop() {
	c.cancel()
	<-c.cron.Stop().Done()
}

// Collect 收集一次指标
func (c *Collector) Collect() {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		c.logger.WithError(err).Warn("failed to collect database connection metrics")
	}

	ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
	defer cancel()

	counts, err := c.todos.CountPendingByType(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("failed to collect pending todo metrics")
		return
	}
	ResetPendingTodos()
	for _, count := range counts {
		SetPendingTodos(count.TodoType, float64(count.Pending))
	}
}
