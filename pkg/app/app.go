// Package app 提供应用程序的初始化和配置功能.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/pubvault/pkg/api"
	"github.com/yeisme/pubvault/pkg/internal/handle"
	"github.com/yeisme/pubvault/pkg/internal/jobs"
	"github.com/yeisme/pubvault/pkg/log"
	"github.com/yeisme/pubvault/pkg/metrics"
	"github.com/yeisme/pubvault/pkg/middleware"
	"github.com/yeisme/pubvault/pkg/scheduler"
)

// App HTTP 服务：gin 引擎、定时任务与事件消费者.
type App struct {
	Engine *gin.Engine

	container *Container
	sched     *scheduler.Scheduler
}

// NewApp 基于 Container 创建 gin 引擎并注册中间件、路由、定时任务和事件消费者.
func NewApp(c *Container) (*App, error) {
	cfg := c.Config

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		// PDF 本身已压缩
		gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{cfg.Attachments.PublicBase})),
	)

	if err := metrics.StartMetricsServer(cfg.Metrics, engine); err != nil {
		return nil, err
	}

	var health handle.HealthChecker
	if c.Storage != nil {
		health = c.Storage
	}

	h := handle.NewHandlers(c.Publications, c.Ingest, c.CSV, c.Enrich, c.Attachments, health)
	api.RegisterGroup(engine, h, cfg.Attachments.PublicBase)

	a := &App{Engine: engine, container: c}

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.NewScheduler(log.Component("scheduler"))
		if err != nil {
			return nil, fmt.Errorf("init scheduler: %w", err)
		}

		if err := jobs.RegisterCronJobs(sched, c.Enrich, cfg.Scheduler); err != nil {
			return nil, errors.Join(err, sched.Shutdown())
		}

		a.sched = sched
	}

	if c.Storage != nil && c.Storage.MQ != nil {
		jobs.RegisterSubscribers(c.Storage.MQ, c.Enrich, c.Cache, cfg.Events, cfg.Scheduler.EnrichBatch)
	}

	return a, nil
}

// Run 启动事件消费者与定时任务并监听 HTTP，ctx 取消后优雅退出.
func (a *App) Run(ctx context.Context) error {
	cfg := a.container.Config
	logger := log.Component("app")

	if a.container.Storage != nil && a.container.Storage.MQ != nil {
		if err := a.container.Storage.MQ.Start(ctx); err != nil {
			return fmt.Errorf("start mq router: %w", err)
		}
	}

	if a.sched != nil {
		a.sched.Start()
		defer func() {
			if err := a.sched.Shutdown(); err != nil {
				logger.Warn().Err(err).Msg("scheduler shutdown")
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           a.Engine,
		ReadHeaderTimeout: cfg.Server.GetTimeoutDuration(),
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetTimeoutDuration())
	defer cancel()

	logger.Info().Msg("shutting down http server")

	return srv.Shutdown(shutdownCtx)
}
