package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 流程流转次数
	workflowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of workflow transitions",
		},
		[]string{"kind", "action", "outcome"}, // outcome: success 或失败类型
	)

	workflowTransitionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "workflow_transition_duration_seconds",
			Help:    "Workflow transition duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "action"},
	)

	// 审核人来源
	reviewerResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewer_resolutions_total",
			Help: "Total number of reviewer resolutions by tier",
		},
		[]string{"tier"},
	)

	// 待处理待办数
	todoItemsPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "todo_items_pending",
			Help: "Number of pending todo items by type",
		},
		[]string{"todo_type"},
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(workflowTransitionsTotal)
	prometheus.MustRegister(workflowTransitionDuration)
	prometheus.MustRegister(reviewerResolutionsTotal)
	prometheus.MustRegister(todoItemsPending)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTransition 记录一次流程流转
func RecordTransition(kind, action, outcome string, duration float64) {
	workflowTransitionsTotal.WithLabelValues(kind, action, outcome).Inc()
	workflowTransitionDuration.WithLabelValues(kind, action).Observe(duration)
}

// RecordReviewerResolution 记录审核人来源
func RecordReviewerResolution(tier string) {
	reviewerResolutionsTotal.WithLabelValues(tier).Inc()
}

// SetPendingTodos 更新待处理待办数
func SetPendingTodos(todoType string, count float64) {
	todoItemsPending.WithLabelValues(todoType).Set(count)
}

// ResetPendingTodos 清空待处理待办数,类型消失后不再保留旧值
func ResetPendingTodos() {
	todoItemsPending.Reset()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}
