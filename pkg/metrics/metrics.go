// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集HTTP、目录操作和运行时指标.
//
// Example:
//
//	import "github.com/yeisme/pubvault/pkg/metrics"
//
//	err := metrics.InitMetrics(config.Metrics)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// 记录指标
//	metrics.RequestCounter.WithLabelValues("GET", "/api/v1/publications", "200").Inc()
//	metrics.PublicationOps.WithLabelValues(metrics.OpCreate, metrics.ResultOK).Inc()
package metrics

import (
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/pubvault/pkg/configs"
)

// 目录操作标签.
const (
	OpCreate    = "create"
	OpEdit      = "edit"
	OpDelete    = "delete"
	OpClear     = "clear"
	OpReset     = "reset"
	OpImportCSV = "import_csv"
	OpExportCSV = "export_csv"
	OpEnrich    = "enrich"

	ResultOK    = "ok"
	ResultError = "error"

	// 目录导入条目结果.
	OutcomeImported = "imported"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 活跃连接数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// PublicationOps 目录操作次数.
	PublicationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubvault_publication_operations_total",
			Help: "Catalog operations by kind and result",
		},
		[]string{"operation", "result"},
	)

	// IngestItems 目录导入处理的 PDF 数.
	IngestItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubvault_ingest_items_total",
			Help: "PDFs seen by folder ingestion, by outcome",
		},
		[]string{"outcome"},
	)

	// CSVRows CSV 导入导出的行数.
	CSVRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pubvault_csv_rows_total",
			Help: "Rows written by export or read by import",
		},
		[]string{"direction"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()

	registerOnce sync.Once
)

// InitMetrics 初始化Metrics. 重复调用只注册一次.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	registerOnce.Do(func() {
		// 注册标准收集器
		if config.RuntimeMetrics {
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		registry.MustRegister(RequestCounter, RequestDuration, ActiveConnections)
		registry.MustRegister(PublicationOps, IngestItems, CSVRows)
	})

	return nil
}

// StartMetricsServer 在 debugEngine 上挂载 /metrics 和可选的 pprof.
func StartMetricsServer(config configs.MetricsConfig, debugEngine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	debugEngine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// 如果启用pprof，注册pprof端点
	if config.Pprof {
		debugEngine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}

	return nil
}

// GetRegistry 获取Prometheus注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Result 把 error 映射为 result 标签.
func Result(err error) string {
	if err != nil {
		return ResultError
	}

	return ResultOK
}

// ObserveOp 记录一次目录操作.
func ObserveOp(op string, err error) {
	PublicationOps.WithLabelValues(op, Result(err)).Inc()
}
