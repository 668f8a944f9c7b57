package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/pubvault/pkg/cache"
	"github.com/yeisme/pubvault/pkg/configs"
	"github.com/yeisme/pubvault/pkg/internal/attachment"
	"github.com/yeisme/pubvault/pkg/internal/service"
	"github.com/yeisme/pubvault/pkg/internal/storage"
	"github.com/yeisme/pubvault/pkg/internal/store"
	"github.com/yeisme/pubvault/pkg/log"
	"github.com/yeisme/pubvault/pkg/metrics"
	"github.com/yeisme/pubvault/pkg/tracing"
)

// Container 组装好的依赖：存储资源、记录存取、附件管理与各业务服务.
// HTTP 服务和命令行共用.
type Container struct {
	Config       *configs.AppConfig
	Storage      *storage.Manager
	Store        *store.PublicationStore
	Attachments  *attachment.Manager
	Cache        *cache.Cache
	Publications *service.PublicationService
	Ingest       *service.IngestService
	CSV          *service.CSVService
	Enrich       *service.EnrichService
}

// Bootstrap 加载配置并初始化日志、追踪、指标，然后组装 Container.
func Bootstrap(ctx context.Context, configPath string) (*Container, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, err
	}

	cfg := configs.GetConfig()

	log.Init(cfg.Log, cfg.Server.Debug)

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return NewContainer(ctx, cfg)
}

// NewContainer 打开存储资源、建表并创建服务.
func NewContainer(ctx context.Context, cfg *configs.AppConfig) (*Container, error) {
	mgr, err := storage.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	st := store.NewPublicationStore(mgr.DB.GetDB())
	if err := st.Migrate(ctx); err != nil {
		return nil, errors.Join(err, mgr.Close())
	}

	c := &Container{
		Config:      cfg,
		Storage:     mgr,
		Store:       st,
		Attachments: attachment.NewManager(mgr.Files, cfg.Attachments.PublicBase),
	}

	var opts []service.Option

	if mgr.KV != nil {
		c.Cache = cache.NewCache(mgr.KV, service.CacheNamespace)
		opts = append(opts, service.WithCache(c.Cache, cfg.Cache.TTL))
	}

	if mgr.MQ != nil {
		opts = append(opts, service.WithPublisher(mgr.MQ.Publisher()))
	}

	c.Publications = service.NewPublicationService(st, c.Attachments, opts...)
	c.Ingest = service.NewIngestService(st, c.Attachments, append(opts, service.WithWorkers(cfg.Ingest.Workers))...)
	c.CSV = service.NewCSVService(st, nil, opts...)
	c.Enrich = service.NewEnrichService(st, c.Attachments, opts...)

	return c, nil
}

// Close 释放存储资源并刷新追踪数据.
func (c *Container) Close(ctx context.Context) error {
	return errors.Join(
		c.Storage.Close(),
		tracing.ShutdownTracer(ctx),
		log.Close(),
	)
}
